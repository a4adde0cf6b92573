package models

import "time"

// Project is a DIY project with a budget and a date range.
type Project struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Time       int       `json:"time"`
	Budget     int       `json:"budget"`
	Spent      int       `json:"spent"`
	StartingAt *Date     `json:"starting_at"`
	EndingAt   *Date     `json:"ending_at"`
	Status     string    `gorm:"size:50" json:"status"`
	Deadline   string    `gorm:"size:100" json:"deadline"`
	Public     bool      `gorm:"not null;index" json:"public"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Tasks     []Task     `gorm:"-" json:"tasks,omitempty"`
	Resources []Resource `gorm:"-" json:"resources,omitempty"`
	Tags      []Tag      `gorm:"-" json:"tags,omitempty"`
}

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task is a unit of work that can belong to several projects.
type Task struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Time       int       `json:"time"`
	Cost       int       `json:"cost"`
	Spent      int       `json:"spent"`
	StartingAt *Date     `json:"starting_at"`
	EndingAt   *Date     `json:"ending_at"`
	Status     string    `gorm:"size:20;not null;index" json:"status"`
	Public     bool      `gorm:"not null;index" json:"public"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Tags []Tag `gorm:"-" json:"tags,omitempty"`
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Resource statuses.
const (
	ResourceStatusAvailable = "available"
	ResourceStatusUsed      = "used"
	ResourceStatusBroken    = "broken"
)

// Resource is a material or tool tracked against projects and tasks.
type Resource struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Price     int       `json:"price"`
	Source    string    `gorm:"size:255" json:"source"`
	Status    string    `gorm:"size:20;not null;index" json:"status"`
	Public    bool      `gorm:"not null;index" json:"public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tags []Tag `gorm:"-" json:"tags,omitempty"`
}

// ValidResourceStatus reports whether s is a known resource status.
func ValidResourceStatus(s string) bool {
	switch s {
	case ResourceStatusAvailable, ResourceStatusUsed, ResourceStatusBroken:
		return true
	}
	return false
}

// Tag labels projects, tasks and resources.
type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Public      bool      `gorm:"not null" json:"public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
