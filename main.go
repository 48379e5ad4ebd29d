package main

import (
	"fmt"
	"relayum/file-api/api"
	"relayum/file-api/config"
	"relayum/file-api/model"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	err := config.Setup()
	if err != nil {
		panic(err)
	}

	a, err := api.NewRouter()
	if err != nil {
		panic(err)
	}

	if config.RecomputeQuotas() {
		recomputeAll(a)
	}

	zap.L().Info("Server starting", zap.Int("port", viper.GetInt("host.port")))

	err = a.Router.Run(fmt.Sprintf(":%d", viper.GetInt("host.port")))
	if err != nil {
		panic(err)
	}
}

// recomputeAll resettles every user's used_bytes from the file rows. Run
// after restoring a database backup or fixing a crashed upload by hand.
func recomputeAll(a *api.API) {
	var ids []string
	if err := a.DB.Model(model.User{}).Pluck("id", &ids).Error; err != nil {
		zap.L().Fatal("Failed to list users for quota recompute", zap.Error(err))
	}

	for _, id := range ids {
		if err := a.Quota.Recompute(id); err != nil {
			zap.L().Error("Quota recompute failed", zap.String("userID", id), zap.Error(err))
		}
	}

	zap.L().Info("Quota recompute finished", zap.Int("users", len(ids)))
}
