package api

import (
	"errors"
	"net/http"
	"relayum/file-api/internal/service"
	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"
	"relayum/file-api/validators"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type registerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) UserRegister(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data registerBody
	if err := c.ShouldBind(&data); err != nil {
		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, apperr.ErrValidation)
		return
	}

	if err := validators.UsernameValidator(data.Username); err != nil {
		abortErr(c, err)
		return
	}

	if err := validators.EmailValidator(data.Email); err != nil {
		abortErr(c, err)
		return
	}

	if err := validators.PasswordValidator(data.Password); err != nil {
		abortErr(c, err)
		return
	}

	var found bool

	r := a.DB.Model(model.User{}).
		Select("count(*) > 0").
		Where("username = ? OR email = ?", data.Username, data.Email).
		First(&found)
	if r.Error != nil && !errors.Is(r.Error, gorm.ErrRecordNotFound) {
		zap.L().Error("Failed to check if user is registered", zap.Error(r.Error), zap.String("requestID", requestID))
		abortErr(c, apperr.ErrInfra)
		return
	}

	if found {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "This username or email is already registered",
			"requestID": requestID,
		})
		return
	}

	hash, err := a.Argon.GenerateFromPassword(data.Password)
	if err != nil {
		zap.L().Error("Failed to hash password", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, apperr.ErrInfra)
		return
	}

	userID, err := gonanoid.Generate(charset, 16)
	if err != nil {
		zap.L().Error("Failed to generate user ID", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, apperr.ErrInfra)
		return
	}

	// The master key is derived from the password and sealed at rest, so
	// decryption never needs the password again after this point.
	sealedKey, keySalt, err := service.SealUserKey(data.Password, a.MetadataKey)
	if err != nil {
		zap.L().Error("Failed to seal user key", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, apperr.ErrInfra)
		return
	}

	if err := a.DB.Create(&model.User{
		ID:           userID,
		Username:     data.Username,
		Email:        data.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		KeySalt:      keySalt,
		SealedKey:    sealedKey,
		Stats: model.Stats{
			UserID: userID,
		},
	}).Error; err != nil {
		zap.L().Error("Failed to create user", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, apperr.ErrInfra)
		return
	}

	service.Audit(a.DB, &userID, "user.register", userID)

	c.JSON(http.StatusCreated, gin.H{
		"userID": userID,
	})
}
