package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"library-system/pkg/apperrors"
	"library-system/pkg/database"
	"library-system/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

var db *gorm.DB

func main() {
	log.Println("Starting reservation service...")

	db = database.InitReservationDB()

	server := gin.Default()
	server.GET("/api/v1/reservations", getReservations)
	server.GET("/api/v1/reservations/:reservationUid", getReservation)
	server.POST("/api/v1/reservations", createReservation)
	server.POST("/api/v1/reservations/:reservationUid/cancel", cancelReservationHandler)
	server.POST("/api/v1/reservations/:reservationUid/fulfill", fulfillReservationHandler)
	server.GET("/api/v1/stats", getStats)
	server.GET("/manage/health", healthCheck)

	port := database.GetEnv("PORT", "8050")
	log.Printf("Reservation service starting on :%s", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func reservationResponse(res models.Reservation) gin.H {
	return gin.H{
		"reservationUid":  res.ReservationUid,
		"bookUid":         res.BookUid,
		"memberUid":       res.MemberUid,
		"reservationDate": res.ReservationDate.Format(dateLayout),
		"status":          res.Status,
	}
}

// transitionReservation moves an active reservation to a terminal status.
// Fulfilled and cancelled reservations stay where they are.
func transitionReservation(reservationUid, target string) (models.Reservation, error) {
	var res models.Reservation
	if err := db.Where("reservation_uid = ?", reservationUid).First(&res).Error; err != nil {
		return models.Reservation{}, apperrors.ErrNotFound
	}
	if res.Status != models.ReservationActive {
		return models.Reservation{}, apperrors.ErrInvalidTransition
	}
	res.Status = target
	if err := db.Save(&res).Error; err != nil {
		return models.Reservation{}, err
	}
	return res, nil
}

func createReservation(c *gin.Context) {
	var request struct {
		BookUid   string `json:"bookUid" binding:"required"`
		MemberUid string `json:"memberUid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	res := models.Reservation{
		ReservationUid:  uuid.New().String(),
		BookUid:         request.BookUid,
		MemberUid:       request.MemberUid,
		ReservationDate: time.Now(),
		Status:          models.ReservationActive,
	}
	if err := db.Create(&res).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reservation"})
		return
	}
	c.JSON(http.StatusCreated, reservationResponse(res))
}

func cancelReservationHandler(c *gin.Context) {
	res, err := transitionReservation(c.Param("reservationUid"), models.ReservationCancelled)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": apperrors.ErrInvalidTransition.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel reservation"})
	default:
		c.JSON(http.StatusOK, reservationResponse(res))
	}
}

func fulfillReservationHandler(c *gin.Context) {
	res, err := transitionReservation(c.Param("reservationUid"), models.ReservationFulfilled)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": apperrors.ErrInvalidTransition.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fulfill reservation"})
	default:
		c.JSON(http.StatusOK, reservationResponse(res))
	}
}

func getReservation(c *gin.Context) {
	var res models.Reservation
	if err := db.Where("reservation_uid = ?", c.Param("reservationUid")).First(&res).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}
	c.JSON(http.StatusOK, reservationResponse(res))
}

func getReservations(c *gin.Context) {
	query := db.Order("id")
	if memberUid := c.Query("memberUid"); memberUid != "" {
		query = query.Where("member_uid = ?", memberUid)
	}

	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(reservations))
	for i, res := range reservations {
		items[i] = reservationResponse(res)
	}
	c.JSON(http.StatusOK, items)
}

func getStats(c *gin.Context) {
	var activeReservations int64
	err := db.Model(&models.Reservation{}).
		Where("status = ?", models.ReservationActive).
		Count(&activeReservations).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeReservations": activeReservations})
}

func healthCheck(ctx *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "reservation service is active",
	})
}
