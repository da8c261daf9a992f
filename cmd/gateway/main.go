package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"library-system/pkg/circuitbreaker"
	"library-system/pkg/models"
	"library-system/pkg/queue"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

var (
	catalogServiceURL     string
	lendingServiceURL     string
	reservationServiceURL string
	httpClient            *http.Client

	releaseQueue *queue.Queue

	catalogBreaker     *circuitbreaker.CircuitBreaker
	lendingBreaker     *circuitbreaker.CircuitBreaker
	reservationBreaker *circuitbreaker.CircuitBreaker
)

func main() {
	catalogServiceURL = getEnv("CATALOG_SERVICE_URL", "http://localhost:8060")
	lendingServiceURL = getEnv("LENDING_SERVICE_URL", "http://localhost:8070")
	reservationServiceURL = getEnv("RESERVATION_SERVICE_URL", "http://localhost:8050")

	httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}

	releaseQueue = queue.NewQueue()
	go runReleaseWorker()

	catalogBreaker = circuitbreaker.New("catalog", 3, 30*time.Second)
	lendingBreaker = circuitbreaker.New("lending", 3, 30*time.Second)
	reservationBreaker = circuitbreaker.New("reservation", 3, 30*time.Second)

	seedUsers()

	r := gin.Default()
	r.Use(rateLimit())

	r.POST("/api/v1/auth/login", loginHandler)
	r.GET("/manage/health", healthCheck)

	authed := r.Group("/api/v1", authRequired())

	// Every role may browse the catalog.
	authed.GET("/books", listBooksHandler)
	authed.GET("/books/:bookUid", getBookHandler)

	// Reservations: members act on their own records, checked in-handler.
	authed.GET("/reservations", getReservationsHandler)
	authed.POST("/reservations", createReservationHandler)
	authed.POST("/reservations/:reservationUid/cancel", cancelReservationHandler)

	staff := authed.Group("", requireRoles(models.RoleAdmin, models.RoleLibrarian))
	staff.POST("/books", createBookHandler)
	staff.PUT("/books/:bookUid", updateBookHandler)
	staff.DELETE("/books/:bookUid", deleteBookHandler)

	staff.GET("/members", listMembersHandler)
	staff.GET("/members/:memberUid", getMemberHandler)
	staff.POST("/members", createMemberHandler)
	staff.PUT("/members/:memberUid", updateMemberHandler)
	staff.DELETE("/members/:memberUid", deleteMemberHandler)

	staff.GET("/loans", getLoansHandler)
	staff.GET("/loans/overdue", getOverdueLoansHandler)
	staff.POST("/loans", createLoanHandler)
	staff.POST("/loans/:loanUid/return", returnLoanHandler)

	staff.POST("/reservations/:reservationUid/fulfill", fulfillReservationHandler)
	staff.GET("/reports", getReportsHandler)

	port := getEnv("PORT", "8080")
	log.Printf("Gateway service starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// ---- authentication ----

type user struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	Role         string
	MembershipID string
}

var (
	usersByEmail = map[string]*user{}

	tokenMu     sync.RWMutex
	tokenStore  = map[string]*user{}
	currentUser = "currentUser"
)

func seedUsers() {
	demo := []struct {
		id, name, email, password, role, membershipID string
	}{
		{"1", "System Administrator", "admin@library.com", "admin123", models.RoleAdmin, ""},
		{"2", "Head Librarian", "librarian@library.com", "lib123", models.RoleLibrarian, "LIB001"},
		{"3", "John Member", "member@library.com", "mem123", models.RoleMember, "MEM001"},
	}
	for _, d := range demo {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password for %s: %v", d.email, err)
		}
		usersByEmail[d.email] = &user{
			ID:           d.id,
			Name:         d.name,
			Email:        d.email,
			PasswordHash: hash,
			Role:         d.role,
			MembershipID: d.membershipID,
		}
	}
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	return hex.EncodeToString(buf)
}

func loginHandler(c *gin.Context) {
	var request struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	u, ok := usersByEmail[request.Email]
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(request.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token := newToken()
	tokenMu.Lock()
	tokenStore[token] = u
	tokenMu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":           u.ID,
			"name":         u.Name,
			"email":        u.Email,
			"role":         u.Role,
			"membershipId": u.MembershipID,
		},
	})
}

func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenMu.RLock()
		u, ok := tokenStore[header[len(prefix):]]
		tokenMu.RUnlock()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(currentUser, u)
		c.Next()
	}
}

func requireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := userFromContext(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, role := range roles {
			if u.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

func userFromContext(c *gin.Context) *user {
	value, ok := c.Get(currentUser)
	if !ok {
		return nil
	}
	u, _ := value.(*user)
	return u
}

// ---- rate limiting ----

// rateLimit gives every client IP its own token bucket: 10 req/s with a
// burst of 20. Stale entries are evicted by a background sweep.
func rateLimit() gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu      sync.Mutex
		clients = map[string]*client{}
	)

	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			for ip, cl := range clients {
				if time.Since(cl.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}

		mu.Lock()
		cl, found := clients[ip]
		if !found {
			cl = &client{limiter: rate.NewLimiter(rate.Limit(10), 20)}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		allowed := cl.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// ---- upstream helpers ----

func doJSON(method, url string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(data)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return httpClient.Do(req)
}

// proxy forwards the request body to an upstream url and relays the
// upstream response verbatim.
func proxy(c *gin.Context, method, url string) {
	var body io.Reader
	if c.Request.Body != nil {
		body = c.Request.Body
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create the request"})
		return
	}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach upstream service"})
		return
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read the response"})
		return
	}
	if resp.StatusCode == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(resp.StatusCode, "application/json", data)
}

func getBookInfo(bookUid string) map[string]interface{} {
	resp, err := doJSON("GET", fmt.Sprintf("%s/api/v1/books/%s", catalogServiceURL, bookUid), nil)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var book map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil
	}
	return book
}

func getMemberInfo(memberUid string) map[string]interface{} {
	resp, err := doJSON("GET", fmt.Sprintf("%s/api/v1/members/%s", catalogServiceURL, memberUid), nil)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var member map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil
	}
	return member
}

// resolveMemberUid finds the catalog member record that belongs to the
// authenticated user, matched by membership id.
func resolveMemberUid(u *user) (string, error) {
	if u.MembershipID == "" {
		return "", fmt.Errorf("user %s has no membership id", u.Email)
	}
	url := fmt.Sprintf("%s/api/v1/members?membershipId=%s", catalogServiceURL, u.MembershipID)
	resp, err := doJSON("GET", url, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("member lookup failed: status %d", resp.StatusCode)
	}
	var envelope struct {
		Items []struct {
			MemberUid string `json:"memberUid"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	if len(envelope.Items) == 0 {
		return "", fmt.Errorf("no member record for membership id %s", u.MembershipID)
	}
	return envelope.Items[0].MemberUid, nil
}

// ---- catalog proxying ----

func listBooksHandler(c *gin.Context) {
	url := catalogServiceURL + "/api/v1/books"
	if params := c.Request.URL.Query().Encode(); params != "" {
		url += "?" + params
	}
	proxy(c, "GET", url)
}

func getBookHandler(c *gin.Context) {
	proxy(c, "GET", fmt.Sprintf("%s/api/v1/books/%s", catalogServiceURL, c.Param("bookUid")))
}

func createBookHandler(c *gin.Context) {
	proxy(c, "POST", catalogServiceURL+"/api/v1/books")
}

func updateBookHandler(c *gin.Context) {
	proxy(c, "PUT", fmt.Sprintf("%s/api/v1/books/%s", catalogServiceURL, c.Param("bookUid")))
}

func deleteBookHandler(c *gin.Context) {
	proxy(c, "DELETE", fmt.Sprintf("%s/api/v1/books/%s", catalogServiceURL, c.Param("bookUid")))
}

func listMembersHandler(c *gin.Context) {
	url := catalogServiceURL + "/api/v1/members"
	if params := c.Request.URL.Query().Encode(); params != "" {
		url += "?" + params
	}
	proxy(c, "GET", url)
}

func getMemberHandler(c *gin.Context) {
	proxy(c, "GET", fmt.Sprintf("%s/api/v1/members/%s", catalogServiceURL, c.Param("memberUid")))
}

func createMemberHandler(c *gin.Context) {
	proxy(c, "POST", catalogServiceURL+"/api/v1/members")
}

func updateMemberHandler(c *gin.Context) {
	proxy(c, "PUT", fmt.Sprintf("%s/api/v1/members/%s", catalogServiceURL, c.Param("memberUid")))
}

func deleteMemberHandler(c *gin.Context) {
	proxy(c, "DELETE", fmt.Sprintf("%s/api/v1/members/%s", catalogServiceURL, c.Param("memberUid")))
}

// ---- lending orchestration ----

// createLoanHandler borrows a book: the catalog checkout is the
// availability gate, then the loan record is written. A failed loan
// write rolls the checkout back.
func createLoanHandler(c *gin.Context) {
	var request struct {
		BookUid   string `json:"bookUid" binding:"required"`
		MemberUid string `json:"memberUid" binding:"required"`
		LoanDate  string `json:"loanDate" binding:"required"`
		DueDate   string `json:"dueDate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	loanUid := uuid.New().String()

	checkoutURL := fmt.Sprintf("%s/api/v1/books/%s/checkout", catalogServiceURL, request.BookUid)
	resp, err := doJSON("POST", checkoutURL, gin.H{"loanUid": loanUid})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach catalog service"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		c.Data(resp.StatusCode, "application/json", data)
		return
	}

	loanResp, err := doJSON("POST", lendingServiceURL+"/api/v1/loans", gin.H{
		"loanUid":   loanUid,
		"bookUid":   request.BookUid,
		"memberUid": request.MemberUid,
		"loanDate":  request.LoanDate,
		"dueDate":   request.DueDate,
	})
	if err != nil || loanResp.StatusCode != http.StatusCreated {
		if loanResp != nil {
			loanResp.Body.Close()
		}
		// The book was already checked out; undo it so availability
		// stays consistent with the (absent) loan.
		if rbErr := releaseBook(request.BookUid, loanUid); rbErr != nil {
			log.Printf("Rollback release of book %s failed: %v", request.BookUid, rbErr)
			releaseQueue.Enqueue(&queue.ReleaseTask{
				LoanUid: loanUid,
				BookUid: request.BookUid,
				RetryAt: time.Now().Add(10 * time.Second),
			})
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create loan"})
		return
	}
	defer loanResp.Body.Close()

	var loan map[string]interface{}
	if err := json.NewDecoder(loanResp.Body).Decode(&loan); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode the response"})
		return
	}

	loan["book"] = getBookInfo(request.BookUid)
	loan["member"] = getMemberInfo(request.MemberUid)
	c.JSON(http.StatusCreated, loan)
}

// returnLoanHandler closes the loan, then releases the book. A failed
// release is queued for retry instead of leaving the book stuck on loan.
func returnLoanHandler(c *gin.Context) {
	loanUid := c.Param("loanUid")

	url := fmt.Sprintf("%s/api/v1/loans/%s/return", lendingServiceURL, loanUid)
	resp, err := doJSON("POST", url, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach lending service"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		c.Data(resp.StatusCode, "application/json", data)
		return
	}

	var loan map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&loan); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode the response"})
		return
	}

	bookUid, _ := loan["bookUid"].(string)
	if err := releaseBook(bookUid, loanUid); err != nil {
		log.Printf("Release of book %s failed, queueing retry: %v", bookUid, err)
		releaseQueue.Enqueue(&queue.ReleaseTask{
			LoanUid: loanUid,
			BookUid: bookUid,
			RetryAt: time.Now().Add(10 * time.Second),
		})
	}

	loan["book"] = getBookInfo(bookUid)
	c.JSON(http.StatusOK, loan)
}

func getLoansHandler(c *gin.Context) {
	enrichedLoansFrom(c, lendingServiceURL+"/api/v1/loans")
}

func getOverdueLoansHandler(c *gin.Context) {
	enrichedLoansFrom(c, lendingServiceURL+"/api/v1/loans/overdue")
}

func enrichedLoansFrom(c *gin.Context, url string) {
	resp, err := doJSON("GET", url, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach lending service"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		c.Data(resp.StatusCode, "application/json", data)
		return
	}

	var loans []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&loans); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode the response"})
		return
	}

	enriched := make([]map[string]interface{}, len(loans))
	for i, loan := range loans {
		bookUid, _ := loan["bookUid"].(string)
		memberUid, _ := loan["memberUid"].(string)
		loan["book"] = getBookInfo(bookUid)
		loan["member"] = getMemberInfo(memberUid)
		enriched[i] = loan
	}
	c.JSON(http.StatusOK, enriched)
}

// releaseBook asks the catalog to free the book, keyed to the loan that
// held it. The catalog ignores the release when a newer loan holds the
// book, so a repeat return cannot free a book borrowed again in between.
func releaseBook(bookUid, loanUid string) error {
	url := fmt.Sprintf("%s/api/v1/books/%s/release", catalogServiceURL, bookUid)
	resp, err := doJSON("POST", url, gin.H{"loanUid": loanUid})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to release book: status %d", resp.StatusCode)
	}
	return nil
}

const maxReleaseAttempts = 10

func runReleaseWorker() {
	for {
		time.Sleep(5 * time.Second)
		drainReleaseQueue()
	}
}

// drainReleaseQueue retries every due release once, re-queueing
// failures with a backoff proportional to the attempt count.
func drainReleaseQueue() {
	for {
		task := releaseQueue.Dequeue()
		if task == nil {
			return
		}
		if err := releaseBook(task.BookUid, task.LoanUid); err != nil {
			task.Attempts++
			if task.Attempts >= maxReleaseAttempts {
				log.Printf("Giving up releasing book %s after %d attempts", task.BookUid, task.Attempts)
				continue
			}
			task.RetryAt = time.Now().Add(time.Duration(task.Attempts) * 10 * time.Second)
			releaseQueue.Enqueue(task)
			continue
		}
		log.Printf("Released book %s for loan %s on retry", task.BookUid, task.LoanUid)
	}
}

// ---- reservations ----

func getReservationsHandler(c *gin.Context) {
	u := userFromContext(c)

	url := reservationServiceURL + "/api/v1/reservations"
	if u.Role == models.RoleMember {
		memberUid, err := resolveMemberUid(u)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "no member record for this account"})
			return
		}
		url += "?memberUid=" + memberUid
	} else if memberUid := c.Query("memberUid"); memberUid != "" {
		url += "?memberUid=" + memberUid
	}

	resp, err := doJSON("GET", url, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach reservation service"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		c.Data(resp.StatusCode, "application/json", data)
		return
	}

	var reservations []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&reservations); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode the response"})
		return
	}

	enriched := make([]map[string]interface{}, len(reservations))
	for i, res := range reservations {
		bookUid, _ := res["bookUid"].(string)
		memberUid, _ := res["memberUid"].(string)
		res["book"] = getBookInfo(bookUid)
		res["member"] = getMemberInfo(memberUid)
		enriched[i] = res
	}
	c.JSON(http.StatusOK, enriched)
}

func createReservationHandler(c *gin.Context) {
	u := userFromContext(c)

	var request struct {
		BookUid   string `json:"bookUid" binding:"required"`
		MemberUid string `json:"memberUid"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	memberUid := request.MemberUid
	if u.Role == models.RoleMember {
		// Members reserve for themselves only.
		own, err := resolveMemberUid(u)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "no member record for this account"})
			return
		}
		memberUid = own
	}
	if memberUid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memberUid is required"})
		return
	}

	resp, err := doJSON("POST", reservationServiceURL+"/api/v1/reservations", gin.H{
		"bookUid":   request.BookUid,
		"memberUid": memberUid,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach reservation service"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		c.Data(resp.StatusCode, "application/json", data)
		return
	}

	var reservation map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&reservation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode the response"})
		return
	}

	reservation["book"] = getBookInfo(request.BookUid)
	reservation["member"] = getMemberInfo(memberUid)
	c.JSON(http.StatusCreated, reservation)
}

func cancelReservationHandler(c *gin.Context) {
	u := userFromContext(c)
	reservationUid := c.Param("reservationUid")

	if u.Role == models.RoleMember {
		own, err := resolveMemberUid(u)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "no member record for this account"})
			return
		}
		resp, err := doJSON("GET", fmt.Sprintf("%s/api/v1/reservations/%s", reservationServiceURL, reservationUid), nil)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach reservation service"})
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			c.Data(resp.StatusCode, "application/json", data)
			return
		}
		var reservation struct {
			MemberUid string `json:"memberUid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&reservation); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode the response"})
			return
		}
		if reservation.MemberUid != own {
			c.JSON(http.StatusForbidden, gin.H{"error": "reservation belongs to another member"})
			return
		}
	}

	proxy(c, "POST", fmt.Sprintf("%s/api/v1/reservations/%s/cancel", reservationServiceURL, reservationUid))
}

func fulfillReservationHandler(c *gin.Context) {
	proxy(c, "POST", fmt.Sprintf("%s/api/v1/reservations/%s/fulfill", reservationServiceURL, c.Param("reservationUid")))
}

// ---- reports ----

// getReportsHandler recomputes the dashboard counters from the three
// services on every call. Counts are never cached; a dependency that is
// down (or circuit-broken) fails the whole report rather than returning
// stale numbers.
func getReportsHandler(c *gin.Context) {
	var catalogStats struct {
		TotalBooks   int64 `json:"totalBooks"`
		TotalMembers int64 `json:"totalMembers"`
	}
	var lendingStats struct {
		ActiveLoans  int64 `json:"activeLoans"`
		OverdueLoans int64 `json:"overdueLoans"`
	}
	var reservationStats struct {
		ActiveReservations int64 `json:"activeReservations"`
	}

	if err := fetchStats(catalogBreaker, catalogServiceURL+"/api/v1/stats", &catalogStats); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog service unavailable"})
		return
	}
	if err := fetchStats(lendingBreaker, lendingServiceURL+"/api/v1/stats", &lendingStats); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lending service unavailable"})
		return
	}
	if err := fetchStats(reservationBreaker, reservationServiceURL+"/api/v1/stats", &reservationStats); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reservation service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalBooks":   catalogStats.TotalBooks,
		"totalMembers": catalogStats.TotalMembers,
		"activeLoans":  lendingStats.ActiveLoans,
		"overdueLoans": lendingStats.OverdueLoans,
		"reservations": reservationStats.ActiveReservations,
	})
}

func fetchStats(cb *circuitbreaker.CircuitBreaker, url string, out interface{}) error {
	return cb.Call(func() error {
		resp, err := doJSON("GET", url, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stats request to %s: status %d", url, resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "gateway service is active",
	})
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
