package projects

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an upstream identifier. The API sends IDs as JSON numbers in some
// payloads and as strings in others; both decode to the same string.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// Portal is a projects portal (tenant).
type Portal struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// RemoteUser is a portal user.
type RemoteUser struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Project is a portal project.
type Project struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// TaskStatus is the nested status object of a task.
type TaskStatus struct {
	Name string `json:"name"`
}

// Owner is one assignee of a task.
type Owner struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// TaskDetails carries the owner list.
type TaskDetails struct {
	Owners []Owner `json:"owners"`
}

// RemoteTask is a task as returned by the tasks endpoint.
type RemoteTask struct {
	ID                  ID          `json:"id"`
	Name                string      `json:"name"`
	Status              TaskStatus  `json:"status"`
	Priority            string      `json:"priority"`
	EndDate             string      `json:"end_date"`
	EndDateLong         int64       `json:"end_date_long"`
	LastUpdatedTime     string      `json:"last_updated_time"`
	LastUpdatedTimeLong int64       `json:"last_updated_time_long"`
	Details             TaskDetails `json:"details"`
}

// OwnerID returns the first owner, which is the task's assignee.
func (t RemoteTask) OwnerID() string {
	if len(t.Details.Owners) == 0 {
		return ""
	}
	return t.Details.Owners[0].ID.String()
}

var dateLayouts = []string{time.RFC3339, "01-02-2006", "2006-01-02", "01-02-2006 03:04 PM"}

// DueDate resolves the due date from the epoch field or the formatted
// string. The second result is false when neither parses.
func (t RemoteTask) DueDate() (time.Time, bool) {
	return resolveTime(t.EndDateLong, t.EndDate)
}

// ModifiedAt resolves the last modification time.
func (t RemoteTask) ModifiedAt() (time.Time, bool) {
	return resolveTime(t.LastUpdatedTimeLong, t.LastUpdatedTime)
}

func resolveTime(epochMillis int64, formatted string) (time.Time, bool) {
	if epochMillis > 0 {
		return time.UnixMilli(epochMillis).UTC(), true
	}
	if formatted == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(formatted, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, formatted); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// TaskQuery narrows a tasks fetch.
type TaskQuery struct {
	// ModifiedSince, when set, asks for tasks changed after the watermark.
	ModifiedSince *time.Time
}

type portalsResponse struct {
	Portals []Portal `json:"portals"`
}

type usersResponse struct {
	Users []RemoteUser `json:"users"`
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
}

type tasksResponse struct {
	Tasks []RemoteTask `json:"tasks"`
}
