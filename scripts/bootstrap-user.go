package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/repository"
	"github.com/fxgate/fxgate/internal/service"
)

type output struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Plan    string `json:"plan"`
	Credits int    `json:"credits"`
	APIKey  string `json:"api_key"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Account email")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_PASSWORD"), "Account password")
		planName    = flag.String("plan", "Free", "Plan name")
		deactivate  = flag.Bool("deactivate", false, "Deactivate the account with -email instead of creating one")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}
	if *email == "" {
		fail("-email is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fail("connect database:", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		fail("migrate:", err)
	}
	if _, err := repo.SeedPlans(ctx, model.DefaultPlans); err != nil {
		fail("seed plans:", err)
	}

	if *deactivate {
		user, err := repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
		if err != nil {
			fail("find user:", err)
		}
		if err := repo.SetUserActive(ctx, user.ID, false); err != nil {
			fail("deactivate user:", err)
		}
		fmt.Println("deactivated", user.ID)
		return
	}

	plan, err := findPlan(ctx, repo, *planName)
	if err != nil {
		fail(err.Error())
	}

	// Registration goes through the service so validation and hashing match the API.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewAuthService(repo, auth.NewHasher(auth.DefaultParams), nil, quiet)

	user, err := svc.Register(ctx, *email, *password, plan.ID)
	if err != nil {
		fail("register:", err)
	}

	out := output{
		UserID:  user.ID,
		Email:   user.Email,
		Plan:    plan.Name,
		Credits: user.Credits,
		APIKey:  user.APIKey,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.APIKey)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

func findPlan(ctx context.Context, repo *repository.Repository, name string) (*model.Plan, error) {
	plans, err := repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	names := make([]string, 0, len(plans))
	for i := range plans {
		if strings.EqualFold(plans[i].Name, name) {
			return &plans[i], nil
		}
		names = append(names, plans[i].Name)
	}
	return nil, fmt.Errorf("unknown plan %q (available: %s)", name, strings.Join(names, ", "))
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
