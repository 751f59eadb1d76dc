package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const contextKeyUser = "current_user"

// requireAuth validates the bearer token and loads the current user
// into the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := s.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		var user User
		if err := s.db.First(&user, claims.UserID).Error; err != nil {
			unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(contextKeyUser, user)
		c.Next()
	}
}

// currentUser retrieves the user loaded by requireAuth.
func currentUser(c *gin.Context) (User, bool) {
	value, exists := c.Get(contextKeyUser)
	if !exists {
		return User{}, false
	}
	user, ok := value.(User)
	return user, ok
}

func (s *Server) createUser(username, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Signup creates an account and returns a token plus the new user.
func (s *Server) Signup(c *gin.Context) {
	type SignupRequest struct {
		Username string `json:"username" binding:"required,min=3,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}

	var existing User
	if err := s.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		conflict(c, "Email already in use")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		internalError(c, "")
		return
	}

	user, err := s.createUser(req.Username, req.Email, req.Password)
	if err != nil {
		s.logger.Error("failed to create user", zap.Error(err))
		internalError(c, "Failed to create user")
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		internalError(c, "Failed to issue token")
		return
	}

	userDTO := toUserDTO(*user)
	c.JSON(http.StatusCreated, dto.AuthResponse{
		Token:   token,
		User:    &userDTO,
		Message: "Registration successful",
	})
}

// Login exchanges credentials for a token plus the user.
func (s *Server) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}

	var user User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		unauthorized(c, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		unauthorized(c, "Invalid email or password")
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		internalError(c, "Failed to issue token")
		return
	}

	userDTO := toUserDTO(user)
	c.JSON(http.StatusOK, dto.AuthResponse{
		Token:   token,
		User:    &userDTO,
		Message: "Login successful",
	})
}

// Me returns the authenticated user as a bare object, the way the
// production API does.
func (s *Server) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}
	c.JSON(http.StatusOK, toUserDTO(user))
}
