package routes

import (
	"encoding/json"
	"stayhaven-server/models"
	"stayhaven-server/services"
	"stayhaven-server/storage"
	"stayhaven-server/utils"
	"time"

	"github.com/kataras/iris/v12"
)

func CreateProperty(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input CreatePropertyInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	photos, marshalErr := json.Marshal(input.Photos)
	if marshalErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	property := models.Property{
		HostID:             userID,
		Title:              input.Title,
		Description:        input.Description,
		City:               input.City,
		Country:            input.Country,
		NightlyPriceMinor:  input.NightlyPriceMinor,
		Currency:           input.Currency,
		ServiceFeePercent:  input.ServiceFeePercent,
		MaxGuests:          input.MaxGuests,
		ApprovalRequired:   input.ApprovalRequired,
		CancellationPolicy: input.CancellationPolicy,
		Photos:             photos,
	}

	if createErr := storage.DB.Create(&property).Error; createErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(property)
}

func GetProperty(ctx iris.Context) {
	propertyID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid property ID", ctx)
		return
	}

	var property models.Property
	if err := storage.DB.Preload("Host").First(&property, propertyID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(property)
}

func GetProperties(ctx iris.Context) {
	city := ctx.URLParamDefault("city", "")
	limit := ctx.URLParamIntDefault("limit", 20)
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	query := storage.DB.Where("status = ?", "published").Limit(limit).Order("created_at DESC")
	if city != "" {
		query = query.Where("lower(city) = lower(?)", city)
	}

	var properties []models.Property
	if err := query.Find(&properties).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"data": properties})
}

func GetPropertiesByHost(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var properties []models.Property
	if err := storage.DB.Where("host_id = ?", userID).Order("created_at DESC").Find(&properties).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"data": properties})
}

// CheckPropertyAvailability reports whether a date range is free and what it
// would cost, without creating anything. Uses the same pricing and conflict
// logic as booking initiation, so the quote shown here matches what a booking
// would charge.
func CheckPropertyAvailability(ctx iris.Context) {
	propertyID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid property ID", ctx)
		return
	}

	var input AvailabilityInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !input.CheckIn.Before(input.CheckOut) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Check-out must be after check-in", ctx)
		return
	}

	var property models.Property
	if err := storage.DB.Where("id = ? AND status = ?", propertyID, "published").First(&property).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	conflicts, err := services.CountStayConflicts(storage.DB, property.ID, input.CheckIn, input.CheckOut)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if conflicts > 0 {
		ctx.JSON(iris.Map{"available": false})
		return
	}

	quote, err := services.ComputePrice(property.NightlyPriceMinor, services.Nights(input.CheckIn, input.CheckOut), property.ServiceFeePercent)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	quote.Currency = property.Currency

	ctx.JSON(iris.Map{
		"available": true,
		"quote":     quote,
	})
}

type CreatePropertyInput struct {
	Title              string   `json:"title" validate:"required,max=256"`
	Description        string   `json:"description"`
	City               string   `json:"city" validate:"required"`
	Country            string   `json:"country"`
	NightlyPriceMinor  int64    `json:"nightlyPriceMinor" validate:"required,gt=0"`
	Currency           string   `json:"currency" validate:"omitempty,len=3"`
	ServiceFeePercent  int      `json:"serviceFeePercent" validate:"gte=0,lt=100"`
	MaxGuests          int      `json:"maxGuests" validate:"omitempty,gte=1,lte=16"`
	ApprovalRequired   bool     `json:"approvalRequired"`
	CancellationPolicy string   `json:"cancellationPolicy" validate:"omitempty,oneof=flexible moderate strict"`
	Photos             []string `json:"photos"`
}

type AvailabilityInput struct {
	CheckIn  time.Time `json:"checkIn" validate:"required"`
	CheckOut time.Time `json:"checkOut" validate:"required"`
}
