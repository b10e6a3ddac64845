package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/redrule/reddigen/app/repository"
	"github.com/redrule/reddigen/internal/pkg/usercontext"
)

// HandleUserData returns the signed-in user's profile, plan and recent
// history in one payload. Profile and plan rows are created lazily with
// free-tier defaults on first fetch.
func HandleUserData(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.UserID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	factory := repository.GetGlobalFactory()

	profile, err := factory.GetProfileRepository().GetOrCreate(userCtx.UserID, userCtx.Email)
	if err != nil {
		log.Errorf("[User] Failed to load profile for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "profile_lookup_failed"})
	}

	plan, err := factory.GetPlanRepository().GetOrCreateDefault(userCtx.UserID)
	if err != nil {
		log.Errorf("[User] Failed to load plan for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "plan_lookup_failed"})
	}

	history, err := factory.GetHistoryRepository().ListByUserID(userCtx.UserID, 20)
	if err != nil {
		log.Errorf("[User] Failed to load history for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"profile": profile,
		"plan":    plan,
		"history": history,
	})
}

type profileUpdateRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

// HandleUserProfileUpdate updates the editable profile fields.
func HandleUserProfileUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.UserID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req profileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	repo := repository.GetGlobalFactory().GetProfileRepository()
	profile, err := repo.GetOrCreate(userCtx.UserID, userCtx.Email)
	if err != nil {
		log.Errorf("[User] Failed to load profile for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "profile_lookup_failed"})
	}

	if name := strings.TrimSpace(req.DisplayName); name != "" {
		profile.DisplayName = name
	}
	profile.Bio = strings.TrimSpace(req.Bio)

	if err := repo.Update(profile); err != nil {
		log.Errorf("[User] Failed to update profile for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "profile_update_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"profile": profile})
}
