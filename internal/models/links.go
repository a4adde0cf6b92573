package models

import "time"

// Link is implemented by every join row. LeftID/RightID expose the two
// foreign keys so repositories and services can treat the nine join
// tables uniformly.
type Link interface {
	TableName() string
	LeftID() uint
	RightID() uint
	SetIDs(left, right uint)
}

// LinkSide names one foreign key of a join table and the table it points at.
type LinkSide struct {
	Column string // e.g. "project_id"
	Table  string // e.g. "projects"
	Label  string // human name used in validation messages
}

// UserProject links a user to a project they work on.
type UserProject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_projects_pair" json:"user_id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_user_projects_pair;index" json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserProject) TableName() string   { return "user_projects" }
func (l UserProject) LeftID() uint      { return l.UserID }
func (l UserProject) RightID() uint     { return l.ProjectID }
func (l *UserProject) SetIDs(a, b uint) { l.UserID, l.ProjectID = a, b }

// UserTask links a user to a task.
type UserTask struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_tasks_pair" json:"user_id"`
	TaskID    uint      `gorm:"not null;uniqueIndex:idx_user_tasks_pair;index" json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserTask) TableName() string   { return "user_tasks" }
func (l UserTask) LeftID() uint      { return l.UserID }
func (l UserTask) RightID() uint     { return l.TaskID }
func (l *UserTask) SetIDs(a, b uint) { l.UserID, l.TaskID = a, b }

// UserResource links a user to a resource.
type UserResource struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_resources_pair" json:"user_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_user_resources_pair;index" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (UserResource) TableName() string   { return "user_resources" }
func (l UserResource) LeftID() uint      { return l.UserID }
func (l UserResource) RightID() uint     { return l.ResourceID }
func (l *UserResource) SetIDs(a, b uint) { l.UserID, l.ResourceID = a, b }

// ProjectTask attaches a task to a project.
type ProjectTask struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_tasks_pair" json:"project_id"`
	TaskID    uint      `gorm:"not null;uniqueIndex:idx_project_tasks_pair;index" json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProjectTask) TableName() string   { return "project_tasks" }
func (l ProjectTask) LeftID() uint      { return l.ProjectID }
func (l ProjectTask) RightID() uint     { return l.TaskID }
func (l *ProjectTask) SetIDs(a, b uint) { l.ProjectID, l.TaskID = a, b }

// ProjectResource attaches a resource to a project.
type ProjectResource struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectID  uint      `gorm:"not null;uniqueIndex:idx_project_resources_pair" json:"project_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_project_resources_pair;index" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ProjectResource) TableName() string   { return "project_resources" }
func (l ProjectResource) LeftID() uint      { return l.ProjectID }
func (l ProjectResource) RightID() uint     { return l.ResourceID }
func (l *ProjectResource) SetIDs(a, b uint) { l.ProjectID, l.ResourceID = a, b }

// ProjectTag tags a project.
type ProjectTag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_tags_pair" json:"project_id"`
	TagID     uint      `gorm:"not null;uniqueIndex:idx_project_tags_pair;index" json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProjectTag) TableName() string   { return "project_tags" }
func (l ProjectTag) LeftID() uint      { return l.ProjectID }
func (l ProjectTag) RightID() uint     { return l.TagID }
func (l *ProjectTag) SetIDs(a, b uint) { l.ProjectID, l.TagID = a, b }

// TaskResource records a resource needed by a task.
type TaskResource struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TaskID     uint      `gorm:"not null;uniqueIndex:idx_task_resources_pair" json:"task_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_task_resources_pair;index" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (TaskResource) TableName() string   { return "task_resources" }
func (l TaskResource) LeftID() uint      { return l.TaskID }
func (l TaskResource) RightID() uint     { return l.ResourceID }
func (l *TaskResource) SetIDs(a, b uint) { l.TaskID, l.ResourceID = a, b }

// TaskTag tags a task.
type TaskTag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;uniqueIndex:idx_task_tags_pair" json:"task_id"`
	TagID     uint      `gorm:"not null;uniqueIndex:idx_task_tags_pair;index" json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TaskTag) TableName() string   { return "task_tags" }
func (l TaskTag) LeftID() uint      { return l.TaskID }
func (l TaskTag) RightID() uint     { return l.TagID }
func (l *TaskTag) SetIDs(a, b uint) { l.TaskID, l.TagID = a, b }

// ResourceTag tags a resource.
type ResourceTag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_resource_tags_pair" json:"resource_id"`
	TagID      uint      `gorm:"not null;uniqueIndex:idx_resource_tags_pair;index" json:"tag_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ResourceTag) TableName() string   { return "resource_tags" }
func (l ResourceTag) LeftID() uint      { return l.ResourceID }
func (l ResourceTag) RightID() uint     { return l.TagID }
func (l *ResourceTag) SetIDs(a, b uint) { l.ResourceID, l.TagID = a, b }

// Sides of every join table, keyed by table name.
var (
	sideUser     = LinkSide{Column: "user_id", Table: "users", Label: "User"}
	sideProject  = LinkSide{Column: "project_id", Table: "projects", Label: "Project"}
	sideTask     = LinkSide{Column: "task_id", Table: "tasks", Label: "Task"}
	sideResource = LinkSide{Column: "resource_id", Table: "resources", Label: "Resource"}
	sideTag      = LinkSide{Column: "tag_id", Table: "tags", Label: "Tag"}
)

// LinkSides returns the (left, right) foreign keys of a join table.
func LinkSides(table string) (LinkSide, LinkSide) {
	switch table {
	case "user_projects":
		return sideUser, sideProject
	case "user_tasks":
		return sideUser, sideTask
	case "user_resources":
		return sideUser, sideResource
	case "project_tasks":
		return sideProject, sideTask
	case "project_resources":
		return sideProject, sideResource
	case "project_tags":
		return sideProject, sideTag
	case "task_resources":
		return sideTask, sideResource
	case "task_tags":
		return sideTask, sideTag
	case "resource_tags":
		return sideResource, sideTag
	}
	panic("models: unknown link table " + table)
}
