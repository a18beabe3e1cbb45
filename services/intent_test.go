package services

import (
	"stayhaven-server/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStayInput() IntentInput {
	checkIn := time.Now().AddDate(0, 0, 7)
	return IntentInput{
		SubjectType: models.SubjectTypeStay,
		SubjectID:   42,
		RequesterID: 7,
		CheckIn:     checkIn,
		CheckOut:    checkIn.AddDate(0, 0, 3),
		GuestCount:  2,
	}
}

func TestBuildIntentStay(t *testing.T) {
	intent, err := BuildIntent(validStayInput())
	require.NoError(t, err)

	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, models.SubjectTypeStay, intent.SubjectType)
	assert.Equal(t, uint(42), intent.SubjectID)
	assert.Equal(t, uint(7), intent.RequesterID)
}

func TestBuildIntentKeepsClientIntentID(t *testing.T) {
	in := validStayInput()
	in.IntentID = "client-supplied-key"

	intent, err := BuildIntent(in)
	require.NoError(t, err)
	assert.Equal(t, "client-supplied-key", intent.ID)
}

func TestBuildIntentRequiresAuthentication(t *testing.T) {
	in := validStayInput()
	in.RequesterID = 0

	_, err := BuildIntent(in)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestBuildIntentRejectsMissingSubject(t *testing.T) {
	in := validStayInput()
	in.SubjectID = 0

	_, err := BuildIntent(in)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildIntentRejectsZeroGuests(t *testing.T) {
	in := validStayInput()
	in.GuestCount = 0

	_, err := BuildIntent(in)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildIntentRejectsZeroNightStay(t *testing.T) {
	in := validStayInput()
	in.CheckOut = in.CheckIn

	_, err := BuildIntent(in)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildIntentRejectsInvertedRange(t *testing.T) {
	in := validStayInput()
	in.CheckIn, in.CheckOut = in.CheckOut, in.CheckIn

	_, err := BuildIntent(in)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildIntentActivity(t *testing.T) {
	intent, err := BuildIntent(IntentInput{
		SubjectType: models.SubjectTypeActivity,
		SubjectID:   9,
		RequesterID: 7,
		Date:        time.Now().AddDate(0, 0, 5),
		GuestCount:  4,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectTypeActivity, intent.SubjectType)
}

func TestBuildIntentRejectsPastActivityDate(t *testing.T) {
	_, err := BuildIntent(IntentInput{
		SubjectType: models.SubjectTypeActivity,
		SubjectID:   9,
		RequesterID: 7,
		Date:        time.Now().AddDate(0, 0, -2),
		GuestCount:  4,
	})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildIntentRejectsUnknownSubjectType(t *testing.T) {
	in := validStayInput()
	in.SubjectType = "flight"

	_, err := BuildIntent(in)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildIntentGeneratesUniqueIDs(t *testing.T) {
	first, err := BuildIntent(validStayInput())
	require.NoError(t, err)
	second, err := BuildIntent(validStayInput())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}
