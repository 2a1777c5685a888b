package auth

import "github.com/gin-gonic/gin"

const (
	userIDKey  = "userID"
	isStaffKey = "isStaff"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// IsStaff reports whether the authenticated user carries the staff claim.
func IsStaff(c *gin.Context) bool {
	return c.GetBool(isStaffKey)
}
