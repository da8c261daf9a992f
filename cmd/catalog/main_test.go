package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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
	testDB.AutoMigrate(&models.Book{}, &models.Member{})
	return testDB
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("POST", "/api/v1/books",
		`{"title":"The Great Gatsby","author":"F. Scott Fitzgerald","isbn":"978-0-7432-7356-5","publishDate":"1925-04-10"}`)

	createBook(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotEmpty(t, response["bookUid"])
	assert.Equal(t, true, response["isAvailable"])
	assert.Equal(t, "", response["currentLoanUid"])
}

func TestGetBookNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/books/missing-uid", nil)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "missing-uid"}}

	getBook(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", IsAvailable: true}
	db.Create(&book)

	err := checkoutBook("book-uid", "loan-uid")
	assert.NoError(t, err)

	var updated models.Book
	db.Where("book_uid = ?", "book-uid").First(&updated)
	assert.False(t, updated.IsAvailable)
	assert.Equal(t, "loan-uid", updated.CurrentLoanUid)
}

func TestCheckoutBookAlreadyOnLoan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", IsAvailable: true}
	db.Create(&book)

	assert.NoError(t, checkoutBook("book-uid", "loan-1"))
	err := checkoutBook("book-uid", "loan-2")
	assert.ErrorIs(t, err, apperrors.ErrBookUnavailable)

	var updated models.Book
	db.Where("book_uid = ?", "book-uid").First(&updated)
	assert.Equal(t, "loan-1", updated.CurrentLoanUid)
}

func TestCheckoutMissingBookIsUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	err := checkoutBook("missing-uid", "loan-uid")
	assert.ErrorIs(t, err, apperrors.ErrBookUnavailable)
}

func TestCheckoutHandlerConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", IsAvailable: false, CurrentLoanUid: "loan-1"}
	db.Create(&book)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("POST", "/api/v1/books/book-uid/checkout", `{"loanUid":"loan-2"}`)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "book-uid"}}

	checkoutBookHandler(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReleaseBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", IsAvailable: false, CurrentLoanUid: "loan-uid"}
	db.Create(&book)

	err := releaseBook("book-uid", "loan-uid")
	assert.NoError(t, err)

	var updated models.Book
	db.Where("book_uid = ?", "book-uid").First(&updated)
	assert.True(t, updated.IsAvailable)
	assert.Equal(t, "", updated.CurrentLoanUid)
}

func TestReleaseBookSkipsStaleLoan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", IsAvailable: false, CurrentLoanUid: "loan-2"}
	db.Create(&book)

	err := releaseBook("book-uid", "loan-1")
	assert.NoError(t, err)

	var updated models.Book
	db.Where("book_uid = ?", "book-uid").First(&updated)
	assert.False(t, updated.IsAvailable)
	assert.Equal(t, "loan-2", updated.CurrentLoanUid)
}

func TestReleaseBookNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	err := releaseBook("missing-uid", "loan-uid")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReleaseHandlerKeyedToLoan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", IsAvailable: false, CurrentLoanUid: "loan-2"}
	db.Create(&book)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("POST", "/api/v1/books/book-uid/release", `{"loanUid":"loan-1"}`)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "book-uid"}}

	releaseBookHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, false, response["isAvailable"])
	assert.Equal(t, "loan-2", response["currentLoanUid"])
}

func TestDeleteBookNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("DELETE", "/api/v1/books/missing-uid", nil)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "missing-uid"}}

	deleteBook(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateBookPartialMerge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	book := models.Book{BookUid: "book-uid", Title: "1984", Author: "George Orwell", IsAvailable: true}
	db.Create(&book)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("PUT", "/api/v1/books/book-uid", `{"title":"Nineteen Eighty-Four"}`)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "book-uid"}}

	updateBook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var updated models.Book
	db.Where("book_uid = ?", "book-uid").First(&updated)
	assert.Equal(t, "Nineteen Eighty-Four", updated.Title)
	assert.Equal(t, "George Orwell", updated.Author)
}

func TestGetBooksPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	db.Create(&models.Book{BookUid: "book-1", Title: "A", IsAvailable: true})
	db.Create(&models.Book{BookUid: "book-2", Title: "B", IsAvailable: true})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/books?page=1&size=1", nil)

	getBooks(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(2), response["totalElements"])
	items := response["items"].([]interface{})
	assert.Equal(t, 1, len(items))
}

func TestCreateMember(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("POST", "/api/v1/members",
		`{"name":"John Doe","membershipId":"MEM001","email":"john.doe@email.com","phone":"+1-555-0123"}`)

	createMember(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotEmpty(t, response["memberUid"])
	assert.Equal(t, "MEM001", response["membershipId"])
}

func TestUpdateMemberKeepsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	member := models.Member{MemberUid: "member-uid", Name: "John Doe", MembershipID: "MEM001"}
	db.Create(&member)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest("PUT", "/api/v1/members/member-uid", `{"name":"Johnny Doe"}`)
	c.Params = gin.Params{gin.Param{Key: "memberUid", Value: "member-uid"}}

	updateMember(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var updated models.Member
	db.Where("member_uid = ?", "member-uid").First(&updated)
	assert.Equal(t, "Johnny Doe", updated.Name)
	assert.Equal(t, "MEM001", updated.MembershipID)
	assert.Equal(t, "member-uid", updated.MemberUid)
}

func TestGetMembersByMembershipID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	db.Create(&models.Member{MemberUid: "member-1", Name: "John Doe", MembershipID: "MEM001"})
	db.Create(&models.Member{MemberUid: "member-2", Name: "Jane Smith", MembershipID: "MEM002"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/members?membershipId=MEM002", nil)

	getMembers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	items := response["items"].([]interface{})
	assert.Equal(t, 1, len(items))
	member := items[0].(map[string]interface{})
	assert.Equal(t, "member-2", member["memberUid"])
}

func TestGetStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db = setupTestDB()

	db.Create(&models.Book{BookUid: "book-1", Title: "A", IsAvailable: true})
	db.Create(&models.Book{BookUid: "book-2", Title: "B", IsAvailable: false})
	db.Create(&models.Member{MemberUid: "member-1", Name: "John Doe", MembershipID: "MEM001"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/stats", nil)

	getStats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(2), response["totalBooks"])
	assert.Equal(t, float64(1), response["totalMembers"])
}
