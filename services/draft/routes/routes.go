// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianDraft/services/draft/bulkfix"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/generator"
	"github.com/AleutianAI/AleutianDraft/services/draft/handlers"
	"github.com/AleutianAI/AleutianDraft/services/draft/middleware"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
	"github.com/AleutianAI/AleutianDraft/services/draft/tracksync"
)

// Config carries the wired dependencies SetupRoutes hands to handlers.
// Index may be nil (lightweight mode); search responds 503 in that case.
type Config struct {
	Store         *document.Store
	Logs          snapshot.LogProvider
	Generator     *generator.Client
	Push          tracksync.PushTransport
	Poll          tracksync.PollTransport
	Binder        handlers.ResolverBinder
	Index         *search.Index
	Pacer         bulkfix.Pacer
	Observer      bulkfix.Observer
	ContextRadius int
	PollInterval  time.Duration
	APIKey        string
	Version       string
	EnableMetrics bool
	Logger        *slog.Logger
}

func SetupRoutes(router *gin.Engine, cfg Config) {

	router.GET("/health", handlers.HealthCheck(cfg.Version))
	if cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(cfg.APIKey))
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", handlers.CreateDocument(cfg.Store, cfg.Index))
			documents.GET("/:documentId", handlers.GetDocument(cfg.Store))
			documents.PUT("/:documentId/sections/:section", handlers.UpdateSection(cfg.Store, cfg.Index))
			documents.POST("/:documentId/patch", handlers.ApplyPatch(cfg.Store, cfg.Index))
			documents.POST("/:documentId/bulkfix", handlers.RunBulkFix(handlers.BulkFixDeps{
				Store:         cfg.Store,
				Logs:          cfg.Logs,
				Binder:        cfg.Binder,
				Index:         cfg.Index,
				Pacer:         cfg.Pacer,
				Observer:      cfg.Observer,
				ContextRadius: cfg.ContextRadius,
				Logger:        cfg.Logger,
			}))
			// Snapshot administration routes
			snapshots := documents.Group("/:documentId/snapshots")
			{
				snapshots.POST("", handlers.CommitSnapshot(cfg.Store, cfg.Logs))
				snapshots.GET("", handlers.ListSnapshots(cfg.Logs))
				snapshots.GET("/:snapshotId", handlers.GetSnapshot(cfg.Logs))
				snapshots.POST("/:snapshotId/restore", handlers.RestoreSnapshot(cfg.Store, cfg.Logs, cfg.Index))
				snapshots.GET("/:snapshotId/diff", handlers.DiffSnapshot(cfg.Store, cfg.Logs))
			}
		}
		v1.POST("/generate", handlers.StartGeneration(cfg.Store, cfg.Generator))
		// Generation task routes
		tasks := v1.Group("/tasks")
		{
			tasks.POST("/:taskId/cancel", handlers.CancelGeneration(cfg.Generator))
			tasks.GET("/:taskId/track", handlers.TrackTask(cfg.Push, cfg.Poll, cfg.Store, cfg.Index, cfg.PollInterval))
		}
		v1.GET("/search/related", handlers.RelatedClauses(cfg.Index))
	}
}
