package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
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
	log.Println("Starting catalog service...")

	db = database.InitCatalogDB()

	seedTestData()

	server := gin.Default()
	server.GET("/api/v1/books", getBooks)
	server.GET("/api/v1/books/:bookUid", getBook)
	server.POST("/api/v1/books", createBook)
	server.PUT("/api/v1/books/:bookUid", updateBook)
	server.DELETE("/api/v1/books/:bookUid", deleteBook)
	server.POST("/api/v1/books/:bookUid/checkout", checkoutBookHandler)
	server.POST("/api/v1/books/:bookUid/release", releaseBookHandler)

	server.GET("/api/v1/members", getMembers)
	server.GET("/api/v1/members/:memberUid", getMember)
	server.POST("/api/v1/members", createMember)
	server.PUT("/api/v1/members/:memberUid", updateMember)
	server.DELETE("/api/v1/members/:memberUid", deleteMember)

	server.GET("/api/v1/stats", getStats)
	server.GET("/manage/health", healthCheck)

	port := database.GetEnv("PORT", "8060")
	log.Printf("Catalog service starting on :%s", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func bookResponse(book models.Book) gin.H {
	return gin.H{
		"bookUid":        book.BookUid,
		"title":          book.Title,
		"author":         book.Author,
		"isbn":           book.ISBN,
		"publishDate":    book.PublishDate.Format(dateLayout),
		"isAvailable":    book.IsAvailable,
		"currentLoanUid": book.CurrentLoanUid,
	}
}

func memberResponse(member models.Member) gin.H {
	return gin.H{
		"memberUid":    member.MemberUid,
		"name":         member.Name,
		"membershipId": member.MembershipID,
		"email":        member.Email,
		"phone":        member.Phone,
		"joinDate":     member.JoinDate.Format(dateLayout),
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "100"))
	if err != nil || size < 1 || size > 100 {
		size = 100
	}
	return page, size
}

func getBooks(c *gin.Context) {
	page, size := pageParams(c)

	var totalElements int64
	db.Model(&models.Book{}).Count(&totalElements)

	var books []models.Book
	err := db.Offset((page - 1) * size).Limit(size).Order("id").Find(&books).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, len(books))
	for i, book := range books {
		items[i] = bookResponse(book)
	}
	c.JSON(http.StatusOK, gin.H{
		"page":          page,
		"pageSize":      size,
		"totalElements": totalElements,
		"items":         items,
	})
}

func getBook(c *gin.Context) {
	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	c.JSON(http.StatusOK, bookResponse(book))
}

func createBook(c *gin.Context) {
	var request struct {
		Title       string `json:"title" binding:"required"`
		Author      string `json:"author"`
		ISBN        string `json:"isbn"`
		PublishDate string `json:"publishDate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	publishDate, err := time.Parse(dateLayout, request.PublishDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "publishDate must be YYYY-MM-DD"})
		return
	}

	book := models.Book{
		BookUid:     uuid.New().String(),
		Title:       request.Title,
		Author:      request.Author,
		ISBN:        request.ISBN,
		PublishDate: publishDate,
		IsAvailable: true,
	}
	if err := db.Create(&book).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create book"})
		return
	}
	c.JSON(http.StatusCreated, bookResponse(book))
}

func updateBook(c *gin.Context) {
	var request struct {
		Title       *string `json:"title"`
		Author      *string `json:"author"`
		ISBN        *string `json:"isbn"`
		PublishDate *string `json:"publishDate"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	var book models.Book
	if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}

	if request.Title != nil {
		book.Title = *request.Title
	}
	if request.Author != nil {
		book.Author = *request.Author
	}
	if request.ISBN != nil {
		book.ISBN = *request.ISBN
	}
	if request.PublishDate != nil {
		publishDate, err := time.Parse(dateLayout, *request.PublishDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "publishDate must be YYYY-MM-DD"})
			return
		}
		book.PublishDate = publishDate
	}

	if err := db.Save(&book).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update book"})
		return
	}
	c.JSON(http.StatusOK, bookResponse(book))
}

func deleteBook(c *gin.Context) {
	result := db.Where("book_uid = ?", c.Param("bookUid")).Delete(&models.Book{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete book"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// checkoutBook flips the availability flag and attaches the loan reference
// in one conditional UPDATE, so two concurrent borrows of the same book
// cannot both succeed.
func checkoutBook(bookUid, loanUid string) error {
	result := db.Model(&models.Book{}).
		Where("book_uid = ? AND is_available = ?", bookUid, true).
		Updates(map[string]interface{}{
			"is_available":     false,
			"current_loan_uid": loanUid,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// A missing book and a book already on loan fail the same way:
		// neither can be borrowed.
		return apperrors.ErrBookUnavailable
	}
	return nil
}

// releaseBook makes the book borrowable again and clears its loan
// reference. With a loanUid the release only applies while that loan
// still holds the book: a stale release (the loan was already closed
// and the book borrowed again) leaves the newer loan untouched.
func releaseBook(bookUid, loanUid string) error {
	query := db.Model(&models.Book{}).Where("book_uid = ?", bookUid)
	if loanUid != "" {
		query = query.Where("current_loan_uid = ?", loanUid)
	}
	result := query.Updates(map[string]interface{}{
		"is_available":     true,
		"current_loan_uid": "",
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Book{}).Where("book_uid = ?", bookUid).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.ErrNotFound
		}
		// The book is held by a different loan now; nothing to release.
	}
	return nil
}

func checkoutBookHandler(c *gin.Context) {
	var request struct {
		LoanUid string `json:"loanUid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	err := checkoutBook(c.Param("bookUid"), request.LoanUid)
	switch {
	case errors.Is(err, apperrors.ErrBookUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": apperrors.ErrBookUnavailable.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to checkout book"})
	default:
		var book models.Book
		if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load book"})
			return
		}
		c.JSON(http.StatusOK, bookResponse(book))
	}
}

func releaseBookHandler(c *gin.Context) {
	var request struct {
		LoanUid string `json:"loanUid"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	err := releaseBook(c.Param("bookUid"), request.LoanUid)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to release book"})
	default:
		var book models.Book
		if err := db.Where("book_uid = ?", c.Param("bookUid")).First(&book).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load book"})
			return
		}
		c.JSON(http.StatusOK, bookResponse(book))
	}
}

func getMembers(c *gin.Context) {
	page, size := pageParams(c)

	query := db.Model(&models.Member{})
	if membershipID := c.Query("membershipId"); membershipID != "" {
		query = query.Where("membership_id = ?", membershipID)
	}

	var totalElements int64
	query.Count(&totalElements)

	var members []models.Member
	err := query.Offset((page - 1) * size).Limit(size).Order("id").Find(&members).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, len(members))
	for i, member := range members {
		items[i] = memberResponse(member)
	}
	c.JSON(http.StatusOK, gin.H{
		"page":          page,
		"pageSize":      size,
		"totalElements": totalElements,
		"items":         items,
	})
}

func getMember(c *gin.Context) {
	var member models.Member
	if err := db.Where("member_uid = ?", c.Param("memberUid")).First(&member).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}
	c.JSON(http.StatusOK, memberResponse(member))
}

func createMember(c *gin.Context) {
	var request struct {
		Name         string `json:"name" binding:"required"`
		MembershipID string `json:"membershipId" binding:"required"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	member := models.Member{
		MemberUid:    uuid.New().String(),
		Name:         request.Name,
		MembershipID: request.MembershipID,
		Email:        request.Email,
		Phone:        request.Phone,
		JoinDate:     time.Now(),
	}
	if err := db.Create(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create member"})
		return
	}
	c.JSON(http.StatusCreated, memberResponse(member))
}

// updateMember merges contact fields only. MemberUid and MembershipID are
// fixed at creation.
func updateMember(c *gin.Context) {
	var request struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Phone *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	var member models.Member
	if err := db.Where("member_uid = ?", c.Param("memberUid")).First(&member).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	if request.Name != nil {
		member.Name = *request.Name
	}
	if request.Email != nil {
		member.Email = *request.Email
	}
	if request.Phone != nil {
		member.Phone = *request.Phone
	}

	if err := db.Save(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update member"})
		return
	}
	c.JSON(http.StatusOK, memberResponse(member))
}

func deleteMember(c *gin.Context) {
	result := db.Where("member_uid = ?", c.Param("memberUid")).Delete(&models.Member{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete member"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func getStats(c *gin.Context) {
	var totalBooks, totalMembers int64
	if err := db.Model(&models.Book{}).Count(&totalBooks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := db.Model(&models.Member{}).Count(&totalMembers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalBooks":   totalBooks,
		"totalMembers": totalMembers,
	})
}

func seedTestData() {
	books := []models.Book{
		{
			Title:       "The Great Gatsby",
			Author:      "F. Scott Fitzgerald",
			ISBN:        "978-0-7432-7356-5",
			PublishDate: time.Date(1925, 4, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			Title:       "To Kill a Mockingbird",
			Author:      "Harper Lee",
			ISBN:        "978-0-06-112008-4",
			PublishDate: time.Date(1960, 7, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			Title:       "1984",
			Author:      "George Orwell",
			ISBN:        "978-0-452-28423-4",
			PublishDate: time.Date(1949, 6, 8, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, book := range books {
		var existing models.Book
		if err := db.Where("isbn = ?", book.ISBN).First(&existing).Error; err != nil {
			book.BookUid = uuid.New().String()
			book.IsAvailable = true
			if err := db.Create(&book).Error; err != nil {
				log.Printf("Failed to create book %s: %v", book.Title, err)
			}
		}
	}

	members := []models.Member{
		{
			Name:         "John Doe",
			MembershipID: "MEM001",
			Email:        "john.doe@email.com",
			Phone:        "+1-555-0123",
			JoinDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:         "Jane Smith",
			MembershipID: "MEM002",
			Email:        "jane.smith@email.com",
			Phone:        "+1-555-0124",
			JoinDate:     time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, member := range members {
		var existing models.Member
		if err := db.Where("membership_id = ?", member.MembershipID).First(&existing).Error; err != nil {
			member.MemberUid = uuid.New().String()
			if err := db.Create(&member).Error; err != nil {
				log.Printf("Failed to create member %s: %v", member.Name, err)
			}
		}
	}
	log.Println("Catalog test data seeded")
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
		"details": "catalog service is active",
	})
}
