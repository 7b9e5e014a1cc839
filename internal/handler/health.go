package handler

import (
	"context"
	"net/http"
	"time"

	"cajapos/internal/infra"
	"cajapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports the inventory breaker state;
// never exposes credentials or internals. An open breaker degrades
// payments only, so it does not fail the check.
func Health(db *gorm.DB, rdb *redis.Client, inventarioCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if db == nil {
			dbStatus = "error"
		} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		var dlq gin.H
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			dlq = gin.H{}
			for nombre, queue := range map[string]string{"inventario": worker.QueueInventario, "email": worker.QueueEmail} {
				if n, err := worker.NewDLQ(rdb, queue).Len(ctx); err == nil {
					dlq[nombre] = n
				}
			}
		}

		inventario := "disabled"
		if inventarioCB != nil {
			inventario = inventarioCB.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":         status == http.StatusOK,
			"db":         dbStatus,
			"redis":      redisStatus,
			"inventario": inventario,
			"dlq":        dlq,
		})
	}
}
