package database

import "taskhub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Parents come before the rows that reference them.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.Resource{},
		&models.Tag{},
		&models.UserProject{},
		&models.UserTask{},
		&models.UserResource{},
		&models.ProjectTask{},
		&models.ProjectResource{},
		&models.ProjectTag{},
		&models.TaskResource{},
		&models.TaskTag{},
		&models.ResourceTag{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
		&models.Friendship{},
	}
}
