// Package seed provides helpers to create demo data for the TaskHub
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options tune how the factory writes rows.
type Options struct {
	// DryRun builds rows and assigns synthetic IDs without touching the database.
	DryRun bool
	// SkipBcrypt hashes with bcrypt.MinCost, which keeps large presets fast.
	SkipBcrypt bool
	// MaxDays bounds how far back generated timestamps go.
	MaxDays int
	// BatchSize is the CreateInBatches chunk size.
	BatchSize int
	// RandSeed makes the generated data reproducible when non-zero.
	RandSeed int64
}

func (o Options) maxDays() int {
	if o.MaxDays <= 0 {
		return 90
	}
	return o.MaxDays
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return 100
	}
	return o.BatchSize
}

var diyNouns = []string{
	"deck", "shed", "fence", "bookshelf", "workbench", "garden bed", "bathroom", "kitchen",
	"pergola", "treehouse", "patio", "closet", "staircase", "porch", "chicken coop", "attic",
}

var diyVerbs = []string{
	"Build", "Refinish", "Paint", "Repair", "Install", "Tile", "Insulate", "Sand", "Frame", "Restore",
}

var diyMaterials = []string{
	"pressure-treated lumber", "deck screws", "wood glue", "drywall sheet", "tile grout",
	"exterior paint", "primer", "sandpaper", "concrete mix", "PVC pipe", "hinges", "wood stain",
}

var diyTools = []string{
	"circular saw", "cordless drill", "orbital sander", "miter saw", "level", "stud finder",
	"tile cutter", "nail gun", "shop vac", "clamps",
}

var diyTags = []string{
	"woodworking", "plumbing", "electrical", "painting", "outdoor", "indoor", "beginner",
	"weekend", "budget", "tiling", "landscaping", "upcycling", "renovation", "furniture",
}

var projectStatuses = []string{"planning", "active", "on_hold", "done"}

var deadlineLabels = []string{"flexible", "before winter", "this weekend", "end of month", "before guests arrive"}

// Factory builds TaskHub entities and persists them with GORM.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	now    time.Time
	digest string
	// synthetic ID counter used in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), now: time.Now(), nextID: 1000}
}

func (f *Factory) passwordDigest() (string, error) {
	if f.digest != "" {
		return f.digest, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.digest = string(hash)
	return f.digest, nil
}

// pastTime returns a timestamp spread over the last MaxDays.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.maxDays()*24*60)) * time.Minute
	return f.now.Add(-back)
}

func (f *Factory) pick(items []string) string {
	return items[f.faker.Number(0, len(items)-1)]
}

func (f *Factory) chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// BuildUser returns an unsaved user. n keeps usernames unique within a run.
func (f *Factory) BuildUser(n int, overrides ...func(*models.User)) (*models.User, error) {
	digest, err := f.passwordDigest()
	if err != nil {
		return nil, err
	}
	base := strings.ToLower(f.faker.FirstName())
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = "maker"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	username := fmt.Sprintf("%s_%d", base, n)

	verified := f.pastTime()
	user := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		PasswordDigest:  digest,
		Public:          f.chance(0.8),
		EmailVerifiedAt: &verified,
		CreatedAt:       verified,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// BuildProject returns an unsaved project with a plausible budget and schedule.
func (f *Factory) BuildProject(overrides ...func(*models.Project)) *models.Project {
	start := models.NewDate(f.pastTime())
	end := models.NewDate(start.AddDate(0, 0, f.faker.Number(7, 120)))
	budget := f.faker.Number(100, 5000)
	project := &models.Project{
		Name:       fmt.Sprintf("%s the %s", f.pick(diyVerbs), f.pick(diyNouns)),
		Time:       f.faker.Number(4, 200),
		Budget:     budget,
		Spent:      f.faker.Number(0, budget),
		StartingAt: &start,
		EndingAt:   &end,
		Status:     f.pick(projectStatuses),
		Deadline:   f.pick(deadlineLabels),
		Public:     f.chance(0.6),
		CreatedAt:  start.Time,
	}
	for _, override := range overrides {
		override(project)
	}
	return project
}

// BuildTask returns an unsaved task.
func (f *Factory) BuildTask(overrides ...func(*models.Task)) *models.Task {
	start := models.NewDate(f.pastTime())
	end := models.NewDate(start.AddDate(0, 0, f.faker.Number(1, 14)))
	cost := f.faker.Number(0, 500)
	statuses := []string{models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted}
	task := &models.Task{
		Name:       fmt.Sprintf("%s %s", f.pick(diyVerbs), f.faker.HipsterWord()),
		Time:       f.faker.Number(1, 16),
		Cost:       cost,
		Spent:      f.faker.Number(0, cost),
		StartingAt: &start,
		EndingAt:   &end,
		Status:     f.pick(statuses),
		Public:     f.chance(0.6),
		CreatedAt:  start.Time,
	}
	for _, override := range overrides {
		override(task)
	}
	return task
}

// BuildResource returns an unsaved material or tool.
func (f *Factory) BuildResource(overrides ...func(*models.Resource)) *models.Resource {
	name := f.pick(diyMaterials)
	price := f.faker.Number(2, 80)
	if f.chance(0.3) {
		name = f.pick(diyTools)
		price = f.faker.Number(30, 400)
	}
	statuses := []string{models.ResourceStatusAvailable, models.ResourceStatusUsed, models.ResourceStatusBroken}
	resource := &models.Resource{
		Name:      name,
		Price:     price,
		Source:    f.faker.Company(),
		Status:    f.pick(statuses),
		Public:    f.chance(0.7),
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(resource)
	}
	return resource
}

// BuildTags returns n unsaved tags with unique names.
func (f *Factory) BuildTags(n int) []*models.Tag {
	tags := make([]*models.Tag, 0, n)
	for i := 0; i < n; i++ {
		name := diyTags[i%len(diyTags)]
		if i >= len(diyTags) {
			name = fmt.Sprintf("%s-%d", name, i/len(diyTags))
		}
		tags = append(tags, &models.Tag{
			Name:        name,
			Description: f.faker.Sentence(6),
			Public:      true,
		})
	}
	return tags
}

// BuildPost returns an unsaved post. Update and showcase posts point at projectID
// and fall back to general posts when the author has no project.
func (f *Factory) BuildPost(author *models.User, projectID *uint, overrides ...func(*models.Post)) *models.Post {
	types := []string{models.PostTypeUpdate, models.PostTypeShowcase, models.PostTypeQuestion, models.PostTypeTip, models.PostTypeGeneral}
	postType := f.pick(types)
	if models.RequiresRelatedItem(postType) && projectID == nil {
		postType = models.PostTypeGeneral
	}

	post := &models.Post{
		UserID:    author.ID,
		Title:     strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."),
		Content:   f.faker.Paragraph(1, f.faker.Number(1, 4), 12, "\n\n"),
		PostType:  postType,
		Public:    f.chance(0.75),
		CreatedAt: f.pastTime(),
	}
	if projectID != nil && (models.RequiresRelatedItem(postType) || f.chance(0.3)) {
		id := *projectID
		post.ProjectID = &id
	}
	if len(post.Title) > models.MaxPostTitleLength {
		post.Title = post.Title[:models.MaxPostTitleLength]
	}
	if len(post.Content) > models.MaxPostContentLength {
		post.Content = post.Content[:models.MaxPostContentLength]
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildComment returns an unsaved comment by author on post.
func (f *Factory) BuildComment(author *models.User, post *models.Post) *models.Comment {
	created := post.CreatedAt.Add(time.Duration(f.faker.Number(1, 72*60)) * time.Minute)
	if created.After(f.now) {
		created = f.now
	}
	return &models.Comment{
		Content:   f.faker.Sentence(f.faker.Number(4, 18)),
		UserID:    author.ID,
		PostID:    post.ID,
		CreatedAt: created,
	}
}

// persist writes rows in batches, or assigns synthetic IDs in DryRun mode.
// assign is called with each synthetic ID when dry-running.
func persist[T any](f *Factory, kind string, rows []*T, assign func(*T, uint)) error {
	if len(rows) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, row := range rows {
			f.nextID++
			assign(row, f.nextID)
		}
		middleware.Logger.Info("[dry-run] skipped insert", slog.String("kind", kind), slog.Int("rows", len(rows)))
		return nil
	}
	if err := f.db.CreateInBatches(rows, f.opts.batchSize()).Error; err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

// CreateUsers persists users.
func (f *Factory) CreateUsers(users []*models.User) error {
	return persist(f, "users", users, func(u *models.User, id uint) { u.ID = id })
}

// CreateProjects persists projects.
func (f *Factory) CreateProjects(projects []*models.Project) error {
	return persist(f, "projects", projects, func(p *models.Project, id uint) { p.ID = id })
}

// CreateTasks persists tasks.
func (f *Factory) CreateTasks(tasks []*models.Task) error {
	return persist(f, "tasks", tasks, func(t *models.Task, id uint) { t.ID = id })
}

// CreateResources persists resources.
func (f *Factory) CreateResources(resources []*models.Resource) error {
	return persist(f, "resources", resources, func(r *models.Resource, id uint) { r.ID = id })
}

// CreateTags persists tags.
func (f *Factory) CreateTags(tags []*models.Tag) error {
	return persist(f, "tags", tags, func(t *models.Tag, id uint) { t.ID = id })
}

// CreatePosts persists posts.
func (f *Factory) CreatePosts(posts []*models.Post) error {
	return persist(f, "posts", posts, func(p *models.Post, id uint) { p.ID = id })
}

// CreateComments persists comments.
func (f *Factory) CreateComments(comments []*models.Comment) error {
	return persist(f, "comments", comments, func(c *models.Comment, id uint) { c.ID = id })
}

// CreateLikes persists likes.
func (f *Factory) CreateLikes(likes []*models.Like) error {
	return persist(f, "likes", likes, func(l *models.Like, id uint) { l.ID = id })
}

// CreateFollows persists follows.
func (f *Factory) CreateFollows(follows []*models.Follow) error {
	return persist(f, "follows", follows, func(fl *models.Follow, id uint) { fl.ID = id })
}

// CreateFriendships persists friendships.
func (f *Factory) CreateFriendships(friendships []*models.Friendship) error {
	return persist(f, "friendships", friendships, func(fr *models.Friendship, id uint) { fr.ID = id })
}

// CreateLinks persists join rows of one link table. Pairs must already be unique.
func CreateLinks[T any, PT interface {
	*T
	models.Link
}](f *Factory, pairs [][2]uint) error {
	rows := make([]*T, 0, len(pairs))
	for _, pair := range pairs {
		row := PT(new(T))
		row.SetIDs(pair[0], pair[1])
		rows = append(rows, (*T)(row))
	}
	var table string
	if len(rows) > 0 {
		table = PT(rows[0]).TableName()
	}
	return persist(f, table, rows, func(*T, uint) {})
}
