package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SubFox/app/models"
	"github.com/ManuelReschke/SubFox/app/repository"
	"github.com/ManuelReschke/SubFox/internal/pkg/entitlements"
)

// UserController handles account provisioning. Creating an account is the
// only place outside the webhook pipeline that touches the subscriptions
// table, and only to seed the free row.
type UserController struct {
	users  repository.UserRepository
	subs   repository.SubscriptionRepository
	prices repository.PriceMappingRepository
}

// NewUserController creates the controller from injected repositories.
func NewUserController(users repository.UserRepository, subs repository.SubscriptionRepository, prices repository.PriceMappingRepository) *UserController {
	return &UserController{users: users, subs: subs, prices: prices}
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleCreateUser provisions a user account together with its free
// subscription row.
func (uc *UserController) HandleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "password_hash_failed"})
	}
	if err := user.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if _, err := uc.users.GetByEmail(req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email_taken"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[API] user lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	if err := uc.users.Create(user); err != nil {
		log.Errorf("[API] user create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_create_failed"})
	}

	sub := &models.Subscription{
		UserID: user.ID,
		Status: models.SubscriptionStatusFree,
	}
	if err := uc.subs.Create(sub); err != nil {
		log.Errorf("[API] subscription seed failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_seed_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     user.ID,
		"name":   user.Name,
		"email":  user.Email,
		"status": sub.Status,
	})
}

// HandleGetSubscription returns the subscription state for a user id. Used
// by internal tooling to inspect reconciliation results.
func (uc *UserController) HandleGetSubscription(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}

	sub, err := uc.subs.GetByUserID(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Errorf("[API] subscription lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_lookup_failed"})
	}

	var mapping *models.PriceMapping
	if sub.PriceID != "" {
		if m, err := uc.prices.GetByPriceID(sub.PriceID); err == nil {
			mapping = m
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"subscription": sub,
		"plan":         entitlements.PlanForSubscription(sub, mapping),
	})
}
