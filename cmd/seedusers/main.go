// Command seedusers provisions the initial role accounts from environment
// variables. For each of ADMIN, EDITOR, ANALYST, and VIEWER it reads
// <ROLE>_NAME, <ROLE>_EMAIL, <ROLE>_PASSWORD, and <ROLE>_DEPARTMENT;
// a role with an email but no password triggers a terminal prompt.
// Existing emails are skipped.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/vserve-ph/arta-backend/internal/buildinfo"
	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/storage"
)

type roleSpec struct {
	prefix            string
	role              accounts.Role
	defaultName       string
	defaultDepartment string
}

var roleSpecs = []roleSpec{
	{"ADMIN", accounts.RoleAdministrator, "Admin User", "IT Administration"},
	{"EDITOR", accounts.RoleEditor, "Editor User", "Business Licensing"},
	{"ANALYST", accounts.RoleAnalyst, "Analyst User", "Data Analytics"},
	{"VIEWER", accounts.RoleViewer, "Viewer User", "Building Permits"},
}

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	manager, err := storage.NewManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer manager.Close()

	seeded, skipped := 0, 0
	for _, spec := range roleSpecs {
		email := os.Getenv(spec.prefix + "_EMAIL")
		if email == "" {
			continue
		}

		password := os.Getenv(spec.prefix + "_PASSWORD")
		if password == "" {
			password, err = promptPassword(email)
			if err != nil {
				log.Fatalf("password prompt error: %v", err)
			}
		}
		if password == "" {
			fmt.Printf("no password for %s, skipping\n", email)
			continue
		}

		created, err := seedUser(ctx, manager.Accounts(), spec, email, password)
		if err != nil {
			log.Fatalf("seeding %s: %v", email, err)
		}
		if created {
			fmt.Printf("created %s (%s)\n", email, spec.role)
			seeded++
		} else {
			fmt.Printf("user already exists: %s (skipping)\n", email)
			skipped++
		}
	}

	if seeded == 0 && skipped == 0 {
		fmt.Println("no users configured; set ADMIN_EMAIL / ADMIN_PASSWORD etc.")
		os.Exit(1)
	}
	fmt.Printf("done: %d created, %d skipped\n", seeded, skipped)
}

func seedUser(ctx context.Context, repo accounts.Repository, spec roleSpec, email, password string) (bool, error) {
	email = accounts.NormalizeEmail(email)

	_, err := repo.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	hash, err := accounts.HashPassword(password)
	if err != nil {
		return false, err
	}

	name := os.Getenv(spec.prefix + "_NAME")
	if name == "" {
		name = spec.defaultName
	}
	department := os.Getenv(spec.prefix + "_DEPARTMENT")
	if department == "" {
		department = spec.defaultDepartment
	}

	profile := &accounts.Profile{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         spec.role,
		Department:   department,
		Status:       accounts.StatusActive,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, profile); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func promptPassword(email string) (string, error) {
	fmt.Printf("password for %s: ", email)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	password := string(b)
	common.WipeByteArray(b)
	return password, nil
}
