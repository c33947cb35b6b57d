package api

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/nextfollow/followup_backend/models"
	"bitbucket.org/nextfollow/followup_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func CreateGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewGroup
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		group, err := models.CreateGroup(c.Request.Context(), &input, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, group)
	}
}

func ListGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groups, err := models.ListGroups(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
	}
}

func DeleteGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		if err := models.DeleteGroup(c.Request.Context(), id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

type groupMemberRequest struct {
	CustomerId int `json:"customer_id" binding:"required"`
}

func AssignGroupMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var req groupMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := models.AssignCustomerToGroup(c.Request.Context(), groupId, req.CustomerId); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "group or customer not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"group_id": groupId, "customer_id": req.CustomerId})
	}
}

func RemoveGroupMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		customerId, err := strconv.Atoi(c.Param("customerId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "customerId must be an integer"})
			return
		}

		if err := models.RemoveCustomerFromGroup(c.Request.Context(), groupId, customerId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"group_id": groupId, "customer_id": customerId})
	}
}
