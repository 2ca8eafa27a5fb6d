package webserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/submission"
)

// Submitter runs the verification pipeline.
type Submitter interface {
	Submit(ctx context.Context, text string) (submission.Result, error)
}

type Verify struct {
	svc Submitter
	log *logging.Logger
}

func NewVerify(svc Submitter, log *logging.Logger) Verify {
	return Verify{svc: svc, log: log}
}

func (v Verify) Create(c *gin.Context) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required and must be a string"})
		return
	}

	res, err := v.svc.Submit(c.Request.Context(), *req.Text)
	if err != nil {
		var verr *submission.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
			return
		}
		v.log.Error("verification failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify text. Please try again."})
		return
	}

	if res.Rejected {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       "Content not eligible for fact-checking",
			"contentType": res.ContentType,
			"reason":      res.Reason,
		})
		return
	}

	verdict := "reliable"
	if res.Verdict.IsMisinformation {
		verdict = "misinformation"
	}
	body := gin.H{
		"verdict":           verdict,
		"is_misinformation": res.Verdict.IsMisinformation,
		"confidence":        res.Verdict.Confidence,
		"category":          res.Verdict.Category,
		"explanation":       res.Verdict.Explanation,
		"analyzed_at":       res.AnalyzedAt.Format(time.RFC3339Nano),
	}
	if res.ReportID != "" {
		body["report_id"] = res.ReportID
	}
	if res.ClusterID != "" {
		body["cluster_id"] = res.ClusterID
	}
	c.JSON(http.StatusOK, body)
}
