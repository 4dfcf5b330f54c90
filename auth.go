package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bankoffice/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Authenticate verifies a staff username/password pair.
func Authenticate(username, password string) (models.Employee, error) {
	username = strings.TrimSpace(username)
	var emp models.Employee
	if err := db.Where("username = ?", username).First(&emp).Error; err != nil {
		return models.Employee{}, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(emp.HashedPassword, []byte(password)); err != nil {
		return models.Employee{}, fmt.Errorf("invalid credentials")
	}
	return emp, nil
}

// issueAccessToken signs a short-lived HS256 token for the employee.
func issueAccessToken(emp models.Employee) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": emp.Username,
		"exp":      time.Now().Add(sessionTTL()).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(employeeID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{EmployeeID: employeeID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// findRefreshTokenByRaw looks a refresh token record up by its raw string.
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// jwtAuthMiddleware gates every data route behind a valid Bearer token.
func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "code": codeNotLoggedIn, "msg": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "code": codeNotLoggedIn, "msg": "invalid or expired token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "code": codeNotLoggedIn, "msg": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		c.Set("username", username)
		c.Next()
	}
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"user_id" binding:"required"`
		Password string `json:"passwd" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	emp, err := Authenticate(req.Username, req.Password)
	if err != nil {
		respondErr(c, codeNotLoggedIn, err.Error())
		return
	}
	tokenString, err := issueAccessToken(emp)
	if err != nil {
		respondErr(c, codeUnknownSQL, "failed to generate token")
		return
	}
	refreshToken, err := createAndStoreRefreshToken(emp.ID)
	if err != nil {
		respondErr(c, codeUnknownSQL, "failed to create refresh token")
		return
	}
	respondOK(c, gin.H{"session": tokenString, "refresh_token": refreshToken})
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		respondErr(c, codeNotLoggedIn, "invalid or expired refresh token")
		return
	}
	var emp models.Employee
	if err := db.First(&emp, rt.EmployeeID).Error; err != nil {
		respondErr(c, codeNotLoggedIn, "employee not found")
		return
	}
	tokenString, err := issueAccessToken(emp)
	if err != nil {
		respondErr(c, codeUnknownSQL, "failed to generate token")
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(emp.ID)
	if err != nil {
		respondErr(c, codeUnknownSQL, "failed to rotate refresh token")
		return
	}
	respondOK(c, gin.H{"session": tokenString, "refresh_token": newRT})
}

// logoutHandler revokes a refresh token so it can no longer mint sessions.
func logoutHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, codeBadRequest, err.Error())
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		respondErr(c, codeNotFound, "refresh token not found")
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		respondErr(c, codeUnknownSQL, "failed to revoke token")
		return
	}
	respondOK(c, nil)
}
