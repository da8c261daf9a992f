package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"library-system/pkg/apperrors"
	"library-system/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB() *gorm.DB {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect test database")
	}
	testDB.AutoMigrate(&models.Reservation{})
	return testDB
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func seedReservation(status string) models.Reservation {
	res := models.Reservation{
		ReservationUid:  "res-uid",
		BookUid:         "book-uid",
		MemberUid:       "member-uid",
		ReservationDate: time.Now(),
		Status:          status,
	}
	db.Create(&res)
	return res
}

func TestCreateReservation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("POST", "/api/v1/reservations",
		`{"bookUid":"book-uid","memberUid":"member-uid"}`)

	createReservation(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotEmpty(t, response["reservationUid"])
	assert.Equal(t, models.ReservationActive, response["status"])
}

func TestCancelReservation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()
	seedReservation(models.ReservationActive)

	res, err := transitionReservation("res-uid", models.ReservationCancelled)
	assert.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, res.Status)
}

func TestCancelReservationTwiceFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()
	seedReservation(models.ReservationActive)

	_, err := transitionReservation("res-uid", models.ReservationCancelled)
	assert.NoError(t, err)

	_, err = transitionReservation("res-uid", models.ReservationCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestFulfilledReservationCannotBeCancelled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()
	seedReservation(models.ReservationFulfilled)

	_, err := transitionReservation("res-uid", models.ReservationCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	var stored models.Reservation
	db.Where("reservation_uid = ?", "res-uid").First(&stored)
	assert.Equal(t, models.ReservationFulfilled, stored.Status)
}

func TestFulfillReservation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()
	seedReservation(models.ReservationActive)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations/res-uid/fulfill", nil)
	c.Params = gin.Params{gin.Param{Key: "reservationUid", Value: "res-uid"}}

	fulfillReservationHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, models.ReservationFulfilled, response["status"])
}

func TestCancelHandlerConflictOnTerminalState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()
	seedReservation(models.ReservationCancelled)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations/res-uid/cancel", nil)
	c.Params = gin.Params{gin.Param{Key: "reservationUid", Value: "res-uid"}}

	cancelReservationHandler(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/reservations/missing-uid/cancel", nil)
	c.Params = gin.Params{gin.Param{Key: "reservationUid", Value: "missing-uid"}}

	cancelReservationHandler(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReservationsByMember(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	db.Create(&models.Reservation{ReservationUid: "res-1", BookUid: "book-1", MemberUid: "member-1", ReservationDate: time.Now(), Status: models.ReservationActive})
	db.Create(&models.Reservation{ReservationUid: "res-2", BookUid: "book-2", MemberUid: "member-2", ReservationDate: time.Now(), Status: models.ReservationActive})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/reservations?memberUid=member-2", nil)

	getReservations(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var items []map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &items)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "res-2", items[0]["reservationUid"])
}

func TestGetStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	db.Create(&models.Reservation{ReservationUid: "res-1", BookUid: "book-1", MemberUid: "member-1", ReservationDate: time.Now(), Status: models.ReservationActive})
	db.Create(&models.Reservation{ReservationUid: "res-2", BookUid: "book-2", MemberUid: "member-1", ReservationDate: time.Now(), Status: models.ReservationCancelled})
	db.Create(&models.Reservation{ReservationUid: "res-3", BookUid: "book-3", MemberUid: "member-2", ReservationDate: time.Now(), Status: models.ReservationFulfilled})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/stats", nil)

	getStats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(1), response["activeReservations"])
}
