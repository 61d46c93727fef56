package apiroutes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/keywatch/go-keywatch-client/api"
	"github.com/keywatch/go-keywatch-client/api/interceptors"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/metrics"
	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// REST API routes for the reference server
func ConfigRoutes(router *gin.Engine, dbSelector repository.DBSelector, stateStore state.Store) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {
		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	router.Use(metrics.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(global.Conf.Api.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = global.Conf.Api.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	serverKeysRepo, repoErr := dbSelector.ChooseDB(repository.ServerKeys)
	if repoErr != nil {
		panic(repoErr)
	}

	// SERVICE definitions
	registry := api.NewTokenRegistry(stateStore)
	keyStore := repository.NewKeyStore(serverKeysRepo)

	// API definitions
	healthApi := api.NewHealthCheckApi()
	authApi := api.NewAuthApi(registry)
	keysApi := api.NewDiagnosisKeysApi(keyStore)

	// PUBLIC ROOT API
	rootPublicApi := router.Group("/", interceptors.RateLimitMiddleware())
	{
		rootPublicApi.GET("/health", healthApi.HealthCheck)
		rootPublicApi.POST("/api/v1/auth", authApi.Authenticate)
	}

	// AUTHENTICATED API
	authorizedApi := router.Group("/api/v1", interceptors.RateLimitMiddleware(), interceptors.BearerAuthMiddleware(registry))
	{
		authorizedApi.GET("/diagnosis-keys", keysApi.ListKeys)
		authorizedApi.POST("/diagnosis-keys", keysApi.SubmitKeys)
	}

	return router
}
