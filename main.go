package main

import (
	"github.com/cppla/moodboard/config"
	"github.com/cppla/moodboard/models"
	"github.com/cppla/moodboard/routes"
	"github.com/cppla/moodboard/services"
	"github.com/cppla/moodboard/store"
	"github.com/cppla/moodboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.User{}, &models.MoodEntry{})

	loc := cfg.Location()
	svc := services.NewMoodService(
		store.NewGormStore(db),
		services.WithLocation(loc),
		services.WithLogger(utils.Logger),
	)

	r := routes.SetupRouter(db, svc)

	utils.Sugar.Infof("Starting server on port %s (graceful), day boundaries in %s", cfg.AppPort, loc)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
