package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/assetdesk/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"gorm.io/gorm"
)

type Claims struct {
	UserID uint
	Role   models.Role
	jwt.StandardClaims
}

// Authenticator issues and verifies API tokens.
type Authenticator struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(db *gorm.DB, secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{db: db, secret: []byte(secret), ttl: ttl}, nil
}

func (a *Authenticator) GenerateToken(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(a.ttl).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Login checks the credentials and returns a signed token.
func (a *Authenticator) Login(username, password string) (string, error) {
	var user models.User
	if err := a.db.Where("username = ?", username).First(&user).Error; err != nil {
		return "", errors.New("invalid credentials")
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return "", errors.New("invalid credentials")
	}
	return a.GenerateToken(&user)
}

// EnsureAdmin creates an admin account when no user exists yet.
func (a *Authenticator) EnsureAdmin(username, password string) (bool, error) {
	var count int64
	if err := a.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if password == "" {
		return false, errors.New("auth.admin_password is required to seed the first admin user")
	}

	admin := models.User{Username: username, Role: models.RoleAdmin, IsActive: true}
	if err := admin.SetPassword(password); err != nil {
		return false, err
	}
	if err := a.db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims := &Claims{}

		tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return a.secret, nil
		})
		if err != nil || !tkn.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if err := a.db.First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("role", string(user.Role))
		c.Next()
	}
}

func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("role")
		for _, role := range roles {
			if string(role) == userRole {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

// RequirePermission checks the authenticated user's role against a named action.
func RequirePermission(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get("user")
		user, isUser := value.(models.User)
		if !ok || !isUser || !user.HasPermission(action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
