package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasklift/backend/internal/models"
	"github.com/tasklift/backend/internal/repository"
)

// seed fills empty package and task tables with the default catalog. It runs
// only when the tables are empty, so restarts never duplicate rows.
func seed(ctx context.Context, packages *repository.PackageRepo, tasks *repository.TaskRepo, logger *slog.Logger) error {
	n, err := packages.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		for _, p := range defaultPackages() {
			if err := packages.Create(ctx, p); err != nil {
				return err
			}
		}
		logger.Info("seeded default packages", "count", len(defaultPackages()))
	}

	n, err = tasks.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		for _, t := range defaultTasks() {
			if err := tasks.Create(ctx, t); err != nil {
				return err
			}
		}
		logger.Info("seeded default tasks", "count", len(defaultTasks()))
	}
	return nil
}

func defaultPackages() []*models.Package {
	return []*models.Package{
		{
			ID:            uuid.New(),
			Name:          "Starter",
			Type:          models.PackageTypeStarter,
			Description:   "Perfect for beginners looking to grow their social presence.",
			PriceCents:    2900,
			TasksPerMonth: 30,
			Features:      []string{"30 social tasks per month", "Basic analytics", "Email support"},
		},
		{
			ID:            uuid.New(),
			Name:          "Professional",
			Type:          models.PackageTypeProfessional,
			Description:   "Great for active social media influencers and content creators.",
			PriceCents:    7900,
			TasksPerMonth: 100,
			Features:      []string{"100 social tasks per month", "Advanced analytics", "Priority support", "Exclusive campaigns"},
			IsPopular:     true,
		},
		{
			ID:            uuid.New(),
			Name:          "Enterprise",
			Type:          models.PackageTypeEnterprise,
			Description:   "For businesses and agencies managing multiple accounts.",
			PriceCents:    19900,
			TasksPerMonth: 1000,
			Features:      []string{"Unlimited social tasks", "Enterprise analytics dashboard", "Dedicated account manager", "API access"},
		},
	}
}

func defaultTasks() []*models.Task {
	now := time.Now()
	return []*models.Task{
		{
			ID:          uuid.New(),
			Title:       "Like and comment on Business Post",
			Description: "Visit the provided link, like the post and leave a thoughtful comment about the content.",
			Platform:    models.PlatformFacebook,
			RewardCents: 200,
			ExpiresAt:   now.Add(2 * 24 * time.Hour),
		},
		{
			ID:          uuid.New(),
			Title:       "Follow account and like recent posts",
			Description: "Follow the account and like their 3 most recent posts. Screenshot proof required.",
			Platform:    models.PlatformInstagram,
			RewardCents: 350,
			ExpiresAt:   now.Add(24 * time.Hour),
		},
		{
			ID:          uuid.New(),
			Title:       "Retweet and add comment",
			Description: "Retweet the provided tweet and add your own comment or thoughts about it.",
			Platform:    models.PlatformTwitter,
			RewardCents: 275,
			ExpiresAt:   now.Add(3 * 24 * time.Hour),
		},
		{
			ID:          uuid.New(),
			Title:       "Share article on LinkedIn",
			Description: "Share the provided article on your LinkedIn profile with a professional comment.",
			Platform:    models.PlatformLinkedIn,
			RewardCents: 400,
			ExpiresAt:   now.Add(5 * 24 * time.Hour),
		},
	}
}
