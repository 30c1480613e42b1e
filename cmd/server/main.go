// Event ingest server: the dashboard posts reports, missing-listing
// submissions, votes and user-state changes here; the pipeline reads the
// resulting logs on its next run.

package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"go-vacancy-pipeline/internal/config"
	"go-vacancy-pipeline/internal/listing"
	"go-vacancy-pipeline/internal/store"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type statePayload struct {
	JobID  string `json:"jobId"`
	Action string `json:"action"`
	TS     string `json:"ts"`
}

func main() {
	cfg := config.Load()
	st := store.New(cfg.DataDir)

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		if c.Query("state") == "1" {
			c.JSON(http.StatusOK, gin.H{
				"ok":    true,
				"state": st.LoadUserState(),
				"votes": latestVotes(st),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Vacancy ingest API is running!",
			"status":  "healthy",
		})
	})

	r.POST("/", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			failJSON(c, err)
			return
		}
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			failJSON(c, err)
			return
		}
		if err := handleEvent(st, env, body); err != nil {
			failJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/health", func(c *gin.Context) {
		data, err := os.ReadFile(filepath.Join(cfg.DataDir, store.HealthFile))
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "health document missing"})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	})

	log.Printf("Server listening on port %s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleEvent routes one posted event to its append-only log, or applies a
// user-state change. Unknown types are rejected.
func handleEvent(st *store.Store, env envelope, raw []byte) error {
	switch env.Type {
	case "report":
		return st.AppendEvent(store.ReportsFile, json.RawMessage(raw))
	case "missing":
		return st.AppendEvent(store.SubmissionsFile, json.RawMessage(raw))
	case "vote":
		return st.AppendEvent(store.VotesFile, json.RawMessage(raw))
	case "state":
		var p statePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		state := st.LoadUserState()
		if p.Action == listing.ActionUndo {
			delete(state, p.JobID)
		} else {
			state[p.JobID] = listing.StateEntry{Action: p.Action, TS: p.TS}
		}
		return st.SaveUserState(state)
	case "user_state_sync":
		state := listing.UserState{}
		if err := json.Unmarshal(env.Payload, &state); err != nil {
			return err
		}
		return st.SaveUserState(state)
	default:
		return errUnknownType(env.Type)
	}
}

type errUnknownType string

func (e errUnknownType) Error() string { return "unknown event type: " + string(e) }

// latestVotes folds the vote log into the newest vote per listing id.
func latestVotes(st *store.Store) map[string]listing.Vote {
	out := map[string]listing.Vote{}
	for _, v := range st.LoadVotes() {
		if v.Type == "vote" && v.JobID != "" {
			out[v.JobID] = v
		}
	}
	return out
}

// failJSON returns the structured failure body the dashboard expects,
// truncating the diagnostic.
func failJSON(c *gin.Context, err error) {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}
