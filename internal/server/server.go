// Package server 流水线的HTTP接口
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lessonmedia/internal/lesson"
	"lessonmedia/internal/model"
	"lessonmedia/internal/pipeline"
	"lessonmedia/internal/prompt"
	"lessonmedia/internal/tools"
)

// Runner 执行一次完整流水线
type Runner interface {
	Run(ctx context.Context, level, topic string) (*model.PipelineRun, error)
}

type lessonRequest struct {
	StudentLevel string `json:"student_level"`
	Content      string `json:"content"`
}

type lessonResponse struct {
	Run     *model.PipelineRun `json:"run"`
	Summary string             `json:"summary"`
}

// NewRouter 注册全部路由
func NewRouter(runner Runner, reg *tools.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.POST("/lessons", handleLesson(runner))
	router.POST("/lessons/parse", handleParse)
	router.POST("/prompts/refine", handleRefine)
	router.GET("/tools", handleToolList(reg))
	router.POST("/tools/:name", handleToolRun(reg))
	return router
}

// handleLesson 运行流水线；教案生成失败返回502，其余失败体现在run.media中
func handleLesson(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lessonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
			return
		}

		run, err := runner.Run(c.Request.Context(), req.StudentLevel, req.Content)
		switch {
		case errors.Is(err, pipeline.ErrEmptyLevel), errors.Is(err, pipeline.ErrEmptyTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("教案生成失败: %v", err), "run": run})
			return
		}
		c.JSON(http.StatusOK, lessonResponse{Run: run, Summary: run.Summary()})
	}
}

func handleParse(c *gin.Context) {
	var req struct {
		TeachingPlan string `json:"teaching_plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	c.JSON(http.StatusOK, lesson.Extract(req.TeachingPlan))
}

func handleRefine(c *gin.Context) {
	var req struct {
		Raw string `json:"raw"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt.Refine(req.Raw)})
}

func handleToolList(reg *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos, err := reg.Infos(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		list := make([]gin.H, 0, len(infos))
		for _, info := range infos {
			list = append(list, gin.H{"name": info.Name, "desc": info.Desc})
		}
		c.JSON(http.StatusOK, gin.H{"tools": list})
	}
}

// handleToolRun 请求体原样作为工具参数
func handleToolRun(reg *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
			return
		}

		result, err := reg.Run(c.Request.Context(), c.Param("name"), string(body))
		switch {
		case errors.Is(err, tools.ErrUnknownTool):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("工具调用失败: %v", err)})
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(result))
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Info("request")
	}
}
