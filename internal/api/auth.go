package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/auth"
	"github.com/lalith-99/tradielink/internal/middleware"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler handles register and login, the only public endpoints, plus
// GET /me for the token holder.
type AuthHandler struct {
	users     repository.UserRepository
	jwtSecret string
	jwtTTL    time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, jwtTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		logger:    logger,
	}
}

// looseNumber accepts a JSON number, a numeric string, or nothing. Forms
// post numbers as strings. NaN and infinities count as nothing.
type looseNumber struct {
	Value float64
	Set   bool
}

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			n.Value, n.Set = v, true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	n.Value, n.Set = v, true
	return nil
}

// stringList accepts either a JSON array or a comma separated string.
// Blank entries are dropped.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*l = nil
			return nil
		}
		raw = nil
		for _, part := range strings.Split(s, ",") {
			raw = append(raw, part)
		}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

type registerRequest struct {
	Role            string      `json:"role"`
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	About           string      `json:"about"`
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	CompanyName     string      `json:"companyName"`
	Address         string      `json:"address"`
	Occupation      string      `json:"occupation"`
	PricePerHour    looseNumber `json:"pricePerHour"`
	ExperienceYears looseNumber `json:"experienceYears"`
	Certifications  stringList  `json:"certifications"`
	PhotoURL        string      `json:"photoUrl"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// normalizeRole maps the sign-up role to a stored role. "labourer" is the
// older name for a tradie.
func normalizeRole(raw string) (models.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "builder":
		return models.RoleBuilder, true
	case "tradie", "labourer":
		return models.RoleTradie, true
	}
	return "", false
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// validate checks a sign-up request and turns it into a NewUser without
// the hash.
func (r *registerRequest) validate() (models.NewUser, error) {
	role, ok := normalizeRole(r.Role)
	if !ok {
		return models.NewUser{}, apperr.InvalidInput("Invalid role.")
	}
	if err := r.checkNames(); err != nil {
		return models.NewUser{}, err
	}
	email := normalizeEmail(r.Email)
	if email == "" {
		return models.NewUser{}, apperr.InvalidInput("Email is required.")
	}
	if err := checkPasswordLength(r.Password); err != nil {
		return models.NewUser{}, err
	}

	nu, err := r.profile(role)
	if err != nil {
		return models.NewUser{}, err
	}
	nu.Email = email
	return nu, nil
}

func (r *registerRequest) checkNames() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" || strings.TrimSpace(r.About) == "" {
		return apperr.InvalidInput("Missing required profile fields.")
	}
	return nil
}

func checkPasswordLength(password string) error {
	if len(password) < 6 {
		return apperr.InvalidInput("Password must be at least 6 characters.")
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperr.InvalidInput("Password must be at most %d bytes.", auth.MaxPasswordBytes)
	}
	return nil
}

// profile validates the name, about and role-specific fields shared by
// sign-up and profile edits.
func (r *registerRequest) profile(role models.Role) (models.NewUser, error) {
	if err := r.checkNames(); err != nil {
		return models.NewUser{}, err
	}
	nu := models.NewUser{
		Role:           role,
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		About:          strings.TrimSpace(r.About),
		Certifications: []string{},
	}
	if photo := strings.TrimSpace(r.PhotoURL); photo != "" {
		nu.PhotoURL = &photo
	}

	if role == models.RoleBuilder {
		company := strings.TrimSpace(r.CompanyName)
		address := strings.TrimSpace(r.Address)
		if company == "" || address == "" {
			return models.NewUser{}, apperr.InvalidInput("Builder requires company name and address.")
		}
		nu.CompanyName, nu.Address = &company, &address
		return nu, nil
	}

	occupation := strings.TrimSpace(r.Occupation)
	if occupation == "" {
		return models.NewUser{}, apperr.InvalidInput("Tradie occupation is required.")
	}
	if !r.PricePerHour.Set || r.PricePerHour.Value <= 0 {
		return models.NewUser{}, apperr.InvalidInput("Tradie pricePerHour must be greater than 0.")
	}
	if !r.ExperienceYears.Set || r.ExperienceYears.Value < 0 {
		return models.NewUser{}, apperr.InvalidInput("Tradie experienceYears must be 0 or more.")
	}
	if len(r.Certifications) == 0 {
		return models.NewUser{}, apperr.InvalidInput("At least one certification is required.")
	}

	price := r.PricePerHour.Value
	// experience_years is an INTEGER column, which rounds half away from zero.
	years := int(math.Round(r.ExperienceYears.Value))
	nu.Occupation = &occupation
	nu.PricePerHour = &price
	nu.ExperienceYears = &years
	nu.Certifications = []string(r.Certifications)
	return nu, nil
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "Failed to register user.")
		return
	}

	nu, err := req.validate()
	if err != nil {
		fail(c, h.logger, err, "Failed to register user.")
		return
	}

	ctx := c.Request.Context()
	existing, err := h.users.GetByEmail(ctx, nu.Email)
	if err != nil {
		fail(c, h.logger, err, "Failed to register user.")
		return
	}
	if existing != nil {
		fail(c, h.logger, apperr.Conflict("Email already registered."), "")
		return
	}

	nu.PasswordHash, err = auth.HashPassword(req.Password)
	if err != nil {
		fail(c, h.logger, err, "Failed to register user.")
		return
	}

	// A concurrent registration can still win the race; the store maps the
	// unique violation to a conflict.
	user, err := h.users.Create(ctx, nu)
	if err != nil {
		fail(c, h.logger, err, "Failed to register user.")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role, user.Email, h.jwtSecret, h.jwtTTL)
	if err != nil {
		fail(c, h.logger, err, "Failed to register user.")
		return
	}

	h.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	respond(c, http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "Login failed.")
		return
	}

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		fail(c, h.logger, apperr.InvalidInput("Email and password are required."), "")
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		fail(c, h.logger, err, "Login failed.")
		return
	}

	// Same answer for unknown email and wrong password.
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		fail(c, h.logger, apperr.Unauthenticated("Invalid email or password."), "")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role, user.Email, h.jwtSecret, h.jwtTTL)
	if err != nil {
		fail(c, h.logger, err, "Login failed.")
		return
	}

	respond(c, http.StatusOK, gin.H{"token": token, "user": user})
}

// Me handles GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.logger, err, "Failed to load profile.")
		return
	}
	// In the token but not in the table: the account is gone.
	if user == nil {
		fail(c, h.logger, apperr.NotFound("User not found."), "")
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile handles PUT /me
//
// The body has the sign-up shape. Role and email stay as they are; an email
// that differs from the stored one is rejected. A non-empty password
// replaces the current one. The answer carries a fresh token.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "Failed to update profile.")
		return
	}

	ctx := c.Request.Context()
	current, err := h.users.GetByID(ctx, middleware.GetUserID(c))
	if err != nil {
		fail(c, h.logger, err, "Failed to update profile.")
		return
	}
	if current == nil {
		fail(c, h.logger, apperr.NotFound("User not found."), "")
		return
	}

	if email := normalizeEmail(req.Email); email != "" && email != current.Email {
		fail(c, h.logger, apperr.InvalidInput("Email cannot be changed."), "")
		return
	}

	p, err := req.profile(current.Role)
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}

	if req.Password != "" {
		if err := checkPasswordLength(req.Password); err != nil {
			fail(c, h.logger, err, "")
			return
		}
		if p.PasswordHash, err = auth.HashPassword(req.Password); err != nil {
			fail(c, h.logger, err, "Failed to update profile.")
			return
		}
	}

	user, err := h.users.Update(ctx, current.ID, p)
	if err != nil {
		fail(c, h.logger, err, "Failed to update profile.")
		return
	}
	if user == nil {
		fail(c, h.logger, apperr.NotFound("User not found."), "")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role, user.Email, h.jwtSecret, h.jwtTTL)
	if err != nil {
		fail(c, h.logger, err, "Failed to update profile.")
		return
	}

	h.logger.Info("profile updated", zap.Int64("user_id", user.ID))
	respond(c, http.StatusOK, gin.H{"token": token, "user": user})
}
