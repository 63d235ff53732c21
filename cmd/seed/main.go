// seed inserts development accounts for local testing. It is idempotent:
// existing departments and users are left untouched.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-tracker/backend/internal/config"
	"workflow-tracker/backend/internal/db"
	deptdomain "workflow-tracker/backend/internal/department/domain"
	deptrepo "workflow-tracker/backend/internal/department/repository"
	"workflow-tracker/backend/internal/logger"
	"workflow-tracker/backend/internal/security"
	userdomain "workflow-tracker/backend/internal/user/domain"
	userrepo "workflow-tracker/backend/internal/user/repository"
)

type seedUser struct {
	email    string
	password string
	name     string
	position string
	role     userdomain.Role
}

var seedUsers = []seedUser{
	{email: "a@x.com", password: "pw1", name: "Alice", position: "Engineer", role: userdomain.RoleUser},
	{email: "admin@x.com", password: "admin1234", name: "Admin", position: "Lead", role: userdomain.RoleAdmin},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or export it")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx := db.NewTxManager(conn)
	depts := deptrepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)
	hasher := security.NewHasher(cfg.BcryptCost)

	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		dept, err := depts.GetByCode(ctx, "DEV")
		if err != nil {
			return err
		}
		if dept == nil {
			dept = &deptdomain.Department{ID: uuid.New().String(), Name: "Development", Code: "DEV", CreatedAt: time.Now().UTC()}
			if err := depts.Create(ctx, dept); err != nil {
				return err
			}
			log.Info("created department", zap.String("code", dept.Code))
		}

		for _, su := range seedUsers {
			existing, err := users.GetByEmail(ctx, su.email)
			if err != nil {
				return err
			}
			if existing != nil {
				log.Info("user exists, skipping", zap.String("email", su.email))
				continue
			}
			hash, err := hasher.Hash([]byte(su.password))
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			u := &userdomain.User{
				ID:           uuid.New().String(),
				Email:        su.email,
				PasswordHash: hash,
				Name:         su.name,
				DepartmentID: dept.ID,
				Position:     su.position,
				Role:         su.role,
				Status:       userdomain.UserStatusOffline,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := users.Create(ctx, u); err != nil && !errors.Is(err, userrepo.ErrEmailTaken) {
				return err
			}
			log.Info("created user", zap.String("email", su.email), zap.String("role", string(su.role)))
		}
		return nil
	})
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed complete")
}
