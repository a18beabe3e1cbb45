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

func CreateActivity(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input CreateActivityInput
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

	activity := models.Activity{
		HostID:              userID,
		Title:               input.Title,
		Description:         input.Description,
		City:                input.City,
		Duration:            input.Duration,
		PricePerPersonMinor: input.PricePerPersonMinor,
		Currency:            input.Currency,
		ServiceFeePercent:   input.ServiceFeePercent,
		Capacity:            input.Capacity,
		Photos:              photos,
	}

	if createErr := storage.DB.Create(&activity).Error; createErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(activity)
}

func GetActivity(ctx iris.Context) {
	activityID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid activity ID", ctx)
		return
	}

	var activity models.Activity
	if err := storage.DB.Preload("Host").First(&activity, activityID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(activity)
}

func GetActivities(ctx iris.Context) {
	city := ctx.URLParamDefault("city", "")
	limit := ctx.URLParamIntDefault("limit", 20)
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	query := storage.DB.Where("status = ?", "published").Limit(limit).Order("created_at DESC")
	if city != "" {
		query = query.Where("lower(city) = lower(?)", city)
	}

	var activities []models.Activity
	if err := query.Find(&activities).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"data": activities})
}

func GetActivitiesByHost(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var activities []models.Activity
	if err := storage.DB.Where("host_id = ?", userID).Order("created_at DESC").Find(&activities).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"data": activities})
}

// CheckActivityAvailability reports remaining capacity and the per-group
// price for a given date and head count.
func CheckActivityAvailability(ctx iris.Context) {
	activityID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid activity ID", ctx)
		return
	}

	var input ActivityAvailabilityInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	date, parseErr := time.Parse("2006-01-02", input.Date)
	if parseErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format", ctx)
		return
	}

	var activity models.Activity
	if err := storage.DB.Where("id = ? AND status = ?", activityID, "published").First(&activity).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	booked, err := services.CountActivityParticipants(storage.DB, activity.ID, date)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	available := int64(activity.Capacity) - booked
	if available < int64(input.GuestCount) {
		ctx.JSON(iris.Map{
			"available":      false,
			"availableSpots": available,
		})
		return
	}

	quote, err := services.ComputePrice(activity.PricePerPersonMinor, input.GuestCount, activity.ServiceFeePercent)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	quote.Currency = activity.Currency

	ctx.JSON(iris.Map{
		"available":      true,
		"availableSpots": available,
		"quote":          quote,
	})
}

type CreateActivityInput struct {
	Title               string   `json:"title" validate:"required,max=256"`
	Description         string   `json:"description"`
	City                string   `json:"city" validate:"required"`
	Duration            int      `json:"duration" validate:"omitempty,gt=0"`
	PricePerPersonMinor int64    `json:"pricePerPersonMinor" validate:"required,gt=0"`
	Currency            string   `json:"currency" validate:"omitempty,len=3"`
	ServiceFeePercent   int      `json:"serviceFeePercent" validate:"gte=0,lt=100"`
	Capacity            int      `json:"capacity" validate:"omitempty,gte=1"`
	Photos              []string `json:"photos"`
}

type ActivityAvailabilityInput struct {
	Date       string `json:"date" validate:"required"`
	GuestCount int    `json:"guestCount" validate:"required,gte=1,lte=16"`
}
