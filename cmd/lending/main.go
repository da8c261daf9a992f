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
	log.Println("Starting lending service...")

	db = database.InitLendingDB()

	server := gin.Default()
	server.GET("/api/v1/loans", getLoans)
	server.GET("/api/v1/loans/overdue", getOverdueLoans)
	server.GET("/api/v1/loans/:loanUid", getLoan)
	server.POST("/api/v1/loans", createLoanHandler)
	server.POST("/api/v1/loans/:loanUid/return", returnLoanHandler)
	server.GET("/api/v1/stats", getStats)
	server.GET("/manage/health", healthCheck)

	port := database.GetEnv("PORT", "8070")
	log.Printf("Lending service starting on :%s", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loanResponse(loan models.Loan) gin.H {
	item := gin.H{
		"loanUid":          loan.LoanUid,
		"bookUid":          loan.BookUid,
		"memberUid":        loan.MemberUid,
		"loanDate":         loan.LoanDate.Format(dateLayout),
		"dueDate":          loan.DueDate.Format(dateLayout),
		"isOverdue":        loan.IsOverdue,
		"actualReturnDate": nil,
	}
	if loan.ActualReturnDate != nil {
		item["actualReturnDate"] = loan.ActualReturnDate.Format(dateLayout)
	}
	return item
}

// createLoan opens a loan. The overdue flag is evaluated here, once: a
// loan created with a due date already in the past is overdue from the
// start, and a loan that passes its due date later keeps the stored flag.
func createLoan(loanUid, bookUid, memberUid string, loanDate, dueDate time.Time) (models.Loan, error) {
	loan := models.Loan{
		LoanUid:   loanUid,
		BookUid:   bookUid,
		MemberUid: memberUid,
		LoanDate:  loanDate,
		DueDate:   dueDate,
		IsOverdue: dueDate.Before(time.Now()),
	}
	if err := db.Create(&loan).Error; err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

// returnLoan closes the loan. Returning an already-closed loan is a
// no-op that keeps the original return date.
func returnLoan(loanUid string) (models.Loan, error) {
	var loan models.Loan
	if err := db.Where("loan_uid = ?", loanUid).First(&loan).Error; err != nil {
		return models.Loan{}, apperrors.ErrNotFound
	}
	if loan.ActualReturnDate != nil {
		return loan, nil
	}
	now := time.Now()
	loan.ActualReturnDate = &now
	if err := db.Save(&loan).Error; err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

func createLoanHandler(c *gin.Context) {
	var request struct {
		LoanUid   string `json:"loanUid"`
		BookUid   string `json:"bookUid" binding:"required"`
		MemberUid string `json:"memberUid" binding:"required"`
		LoanDate  string `json:"loanDate" binding:"required"`
		DueDate   string `json:"dueDate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	loanDate, err := time.Parse(dateLayout, request.LoanDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "loanDate must be YYYY-MM-DD"})
		return
	}
	dueDate, err := time.Parse(dateLayout, request.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dueDate must be YYYY-MM-DD"})
		return
	}

	loanUid := request.LoanUid
	if loanUid == "" {
		loanUid = uuid.New().String()
	}

	loan, err := createLoan(loanUid, request.BookUid, request.MemberUid, loanDate, dueDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create loan"})
		return
	}
	c.JSON(http.StatusCreated, loanResponse(loan))
}

func returnLoanHandler(c *gin.Context) {
	loan, err := returnLoan(c.Param("loanUid"))
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to return loan"})
	default:
		c.JSON(http.StatusOK, loanResponse(loan))
	}
}

func getLoan(c *gin.Context) {
	var loan models.Loan
	if err := db.Where("loan_uid = ?", c.Param("loanUid")).First(&loan).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
		return
	}
	c.JSON(http.StatusOK, loanResponse(loan))
}

func getLoans(c *gin.Context) {
	var loans []models.Loan
	query := db.Order("id")
	if memberUid := c.Query("memberUid"); memberUid != "" {
		query = query.Where("member_uid = ?", memberUid)
	}
	if err := query.Find(&loans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(loans))
	for i, loan := range loans {
		items[i] = loanResponse(loan)
	}
	c.JSON(http.StatusOK, items)
}

func getOverdueLoans(c *gin.Context) {
	var loans []models.Loan
	err := db.Where("is_overdue = ? AND actual_return_date IS NULL", true).
		Order("id").Find(&loans).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(loans))
	for i, loan := range loans {
		items[i] = loanResponse(loan)
	}
	c.JSON(http.StatusOK, items)
}

func getStats(c *gin.Context) {
	var activeLoans, overdueLoans int64
	err := db.Model(&models.Loan{}).
		Where("actual_return_date IS NULL").
		Count(&activeLoans).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	err = db.Model(&models.Loan{}).
		Where("is_overdue = ? AND actual_return_date IS NULL", true).
		Count(&overdueLoans).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"activeLoans":  activeLoans,
		"overdueLoans": overdueLoans,
	})
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
		"details": "lending service is active",
	})
}
