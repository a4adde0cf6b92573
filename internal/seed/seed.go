package seed

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"taskhub/internal/middleware"
	"taskhub/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed presets/presets.yaml
var presetsYAML []byte

// Preset sizes one seeding run.
type Preset struct {
	Users               int     `yaml:"users"`
	ProjectsPerUser     int     `yaml:"projects_per_user"`
	TasksPerProject     int     `yaml:"tasks_per_project"`
	ResourcesPerProject int     `yaml:"resources_per_project"`
	Tags                int     `yaml:"tags"`
	FollowRatio         float64 `yaml:"follow_ratio"`
	FriendRatio         float64 `yaml:"friend_ratio"`
	PostsPerUser        int     `yaml:"posts_per_user"`
	CommentsPerPost     int     `yaml:"comments_per_post"`
	LikeRatio           float64 `yaml:"like_ratio"`
}

// Validate rejects presets that cannot be generated.
func (p Preset) Validate() error {
	if p.Users < 1 {
		return fmt.Errorf("users must be at least 1")
	}
	for name, n := range map[string]int{
		"projects_per_user":     p.ProjectsPerUser,
		"tasks_per_project":     p.TasksPerProject,
		"resources_per_project": p.ResourcesPerProject,
		"tags":                  p.Tags,
		"posts_per_user":        p.PostsPerUser,
		"comments_per_post":     p.CommentsPerPost,
	} {
		if n < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	for name, r := range map[string]float64{
		"follow_ratio": p.FollowRatio,
		"friend_ratio": p.FriendRatio,
		"like_ratio":   p.LikeRatio,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	return nil
}

// LoadPresets parses a YAML document mapping preset names to presets.
func LoadPresets(data []byte) (map[string]Preset, error) {
	var presets map[string]Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	for name, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return presets, nil
}

// BuiltinPresets returns the presets shipped with the binary.
func BuiltinPresets() (map[string]Preset, error) {
	return LoadPresets(presetsYAML)
}

// PresetNames lists preset names in sorted order.
func PresetNames(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary counts the rows a run produced.
type Summary struct {
	Users       int
	Projects    int
	Tasks       int
	Resources   int
	Tags        int
	Links       int
	Follows     int
	Friendships int
	Posts       int
	Comments    int
	Likes       int
}

// Seeder orchestrates a full seeding run on top of a Factory.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder. db may be nil when opts.DryRun is set.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// ApplyPreset runs the built-in preset called name.
func (s *Seeder) ApplyPreset(name string) (*Summary, error) {
	presets, err := BuiltinPresets()
	if err != nil {
		return nil, err
	}
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(presets), ", "))
	}
	return s.Run(p)
}

// Run generates every entity described by p.
func (s *Seeder) Run(p Preset) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sum := &Summary{}

	users, err := s.SeedUsers(p.Users)
	if err != nil {
		return nil, err
	}
	sum.Users = len(users)

	catalog, err := s.SeedCatalog(users, p)
	if err != nil {
		return nil, err
	}
	sum.Projects = len(catalog.projects)
	sum.Tasks = len(catalog.tasks)
	sum.Resources = len(catalog.resources)
	sum.Tags = len(catalog.tags)
	sum.Links = catalog.links

	sum.Follows, sum.Friendships, err = s.SeedSocialMesh(users, p.FollowRatio, p.FriendRatio)
	if err != nil {
		return nil, err
	}

	sum.Posts, sum.Comments, sum.Likes, err = s.SeedEngagement(users, catalog.ownedProjects, p)
	if err != nil {
		return nil, err
	}

	middleware.Logger.Info("seeding complete",
		slog.Int("users", sum.Users),
		slog.Int("projects", sum.Projects),
		slog.Int("tasks", sum.Tasks),
		slog.Int("resources", sum.Resources),
		slog.Int("links", sum.Links),
		slog.Int("posts", sum.Posts),
	)
	return sum, nil
}

// SeedUsers creates n verified users sharing DefaultPassword.
func (s *Seeder) SeedUsers(n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 1; i <= n; i++ {
		u, err := s.factory.BuildUser(i)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := s.factory.CreateUsers(users); err != nil {
		return nil, err
	}
	return users, nil
}

type catalogResult struct {
	projects      []*models.Project
	tasks         []*models.Task
	resources     []*models.Resource
	tags          []*models.Tag
	ownedProjects map[uint][]uint
	links         int
}

// pairSet collects unique (left, right) pairs for one join table.
type pairSet struct {
	seen  map[[2]uint]struct{}
	pairs [][2]uint
}

func newPairSet() *pairSet {
	return &pairSet{seen: make(map[[2]uint]struct{})}
}

func (ps *pairSet) add(left, right uint) {
	key := [2]uint{left, right}
	if _, ok := ps.seen[key]; ok {
		return
	}
	ps.seen[key] = struct{}{}
	ps.pairs = append(ps.pairs, key)
}

// SeedCatalog creates projects, tasks, resources and tags, then wires all nine link tables.
func (s *Seeder) SeedCatalog(users []*models.User, p Preset) (*catalogResult, error) {
	f := s.factory
	res := &catalogResult{ownedProjects: make(map[uint][]uint)}

	res.tags = f.BuildTags(p.Tags)
	if err := f.CreateTags(res.tags); err != nil {
		return nil, err
	}

	projectOwner := make([]*models.User, 0, len(users)*p.ProjectsPerUser)
	for _, u := range users {
		for i := 0; i < p.ProjectsPerUser; i++ {
			res.projects = append(res.projects, f.BuildProject())
			projectOwner = append(projectOwner, u)
		}
	}
	if err := f.CreateProjects(res.projects); err != nil {
		return nil, err
	}

	for range res.projects {
		for i := 0; i < p.TasksPerProject; i++ {
			res.tasks = append(res.tasks, f.BuildTask())
		}
		for i := 0; i < p.ResourcesPerProject; i++ {
			res.resources = append(res.resources, f.BuildResource())
		}
	}
	if err := f.CreateTasks(res.tasks); err != nil {
		return nil, err
	}
	if err := f.CreateResources(res.resources); err != nil {
		return nil, err
	}

	userProjects, userTasks, userResources := newPairSet(), newPairSet(), newPairSet()
	projectTasks, projectResources, projectTags := newPairSet(), newPairSet(), newPairSet()
	taskResources, taskTags, resourceTags := newPairSet(), newPairSet(), newPairSet()

	randomTag := func() (uint, bool) {
		if len(res.tags) == 0 {
			return 0, false
		}
		return res.tags[f.faker.Number(0, len(res.tags)-1)].ID, true
	}

	for pi, project := range res.projects {
		owner := projectOwner[pi]
		userProjects.add(owner.ID, project.ID)
		res.ownedProjects[owner.ID] = append(res.ownedProjects[owner.ID], project.ID)
		if tagID, ok := randomTag(); ok {
			projectTags.add(project.ID, tagID)
		}

		tasks := res.tasks[pi*p.TasksPerProject : (pi+1)*p.TasksPerProject]
		resources := res.resources[pi*p.ResourcesPerProject : (pi+1)*p.ResourcesPerProject]
		for _, t := range tasks {
			projectTasks.add(project.ID, t.ID)
			userTasks.add(owner.ID, t.ID)
			if tagID, ok := randomTag(); ok && f.chance(0.5) {
				taskTags.add(t.ID, tagID)
			}
			if len(resources) > 0 && f.chance(0.6) {
				taskResources.add(t.ID, resources[f.faker.Number(0, len(resources)-1)].ID)
			}
		}
		for _, r := range resources {
			projectResources.add(project.ID, r.ID)
			userResources.add(owner.ID, r.ID)
			if tagID, ok := randomTag(); ok && f.chance(0.4) {
				resourceTags.add(r.ID, tagID)
			}
		}
	}

	steps := []struct {
		set    *pairSet
		create func(*Factory, [][2]uint) error
	}{
		{userProjects, CreateLinks[models.UserProject]},
		{userTasks, CreateLinks[models.UserTask]},
		{userResources, CreateLinks[models.UserResource]},
		{projectTasks, CreateLinks[models.ProjectTask]},
		{projectResources, CreateLinks[models.ProjectResource]},
		{projectTags, CreateLinks[models.ProjectTag]},
		{taskResources, CreateLinks[models.TaskResource]},
		{taskTags, CreateLinks[models.TaskTag]},
		{resourceTags, CreateLinks[models.ResourceTag]},
	}
	for _, step := range steps {
		if err := step.create(f, step.set.pairs); err != nil {
			return nil, err
		}
		res.links += len(step.set.pairs)
	}
	return res, nil
}

// SeedSocialMesh follows and befriends random user pairs. Each unordered pair
// gets at most one friendship row.
func (s *Seeder) SeedSocialMesh(users []*models.User, followRatio, friendRatio float64) (int, int, error) {
	f := s.factory
	var follows []*models.Follow
	var friendships []*models.Friendship

	for i, a := range users {
		for j, b := range users {
			if i == j {
				continue
			}
			if f.chance(followRatio) {
				follows = append(follows, &models.Follow{FollowerID: a.ID, FollowedID: b.ID})
			}
			if j > i && f.chance(friendRatio) {
				status := models.FriendshipStatusAccepted
				if f.chance(0.2) {
					status = models.FriendshipStatusPending
				}
				requester, requestee := a, b
				if f.chance(0.5) {
					requester, requestee = b, a
				}
				friendships = append(friendships, &models.Friendship{
					RequesterID: requester.ID,
					RequesteeID: requestee.ID,
					Status:      status,
				})
			}
		}
	}

	if err := f.CreateFollows(follows); err != nil {
		return 0, 0, err
	}
	if err := f.CreateFriendships(friendships); err != nil {
		return 0, 0, err
	}
	return len(follows), len(friendships), nil
}

// SeedEngagement writes posts for every user, then comments and likes from random users.
func (s *Seeder) SeedEngagement(users []*models.User, ownedProjects map[uint][]uint, p Preset) (int, int, int, error) {
	f := s.factory
	if len(users) == 0 {
		return 0, 0, 0, nil
	}

	posts := make([]*models.Post, 0, len(users)*p.PostsPerUser)
	for _, u := range users {
		for i := 0; i < p.PostsPerUser; i++ {
			var projectID *uint
			if owned := ownedProjects[u.ID]; len(owned) > 0 {
				id := owned[f.faker.Number(0, len(owned)-1)]
				projectID = &id
			}
			posts = append(posts, f.BuildPost(u, projectID))
		}
	}
	if err := f.CreatePosts(posts); err != nil {
		return 0, 0, 0, err
	}

	var comments []*models.Comment
	var likes []*models.Like
	for _, post := range posts {
		if p.CommentsPerPost > 0 {
			for i := f.faker.Number(0, p.CommentsPerPost); i > 0; i-- {
				comments = append(comments, f.BuildComment(users[f.faker.Number(0, len(users)-1)], post))
			}
		}
		for _, u := range users {
			if f.chance(p.LikeRatio) {
				likes = append(likes, &models.Like{UserID: u.ID, PostID: post.ID})
			}
		}
	}
	if err := f.CreateComments(comments); err != nil {
		return 0, 0, 0, err
	}
	if err := f.CreateLikes(likes); err != nil {
		return 0, 0, 0, err
	}
	return len(posts), len(comments), len(likes), nil
}

// seededTables lists every TaskHub table, children first.
var seededTables = []string{
	"likes", "comments", "posts", "follows", "friendships",
	"user_projects", "user_tasks", "user_resources",
	"project_tasks", "project_resources", "project_tags",
	"task_resources", "task_tags", "resource_tags",
	"tags", "resources", "tasks", "projects", "users",
}

// ClearAll removes every seeded row. Postgres also resets identity sequences.
func (s *Seeder) ClearAll() error {
	if s.factory.opts.DryRun {
		middleware.Logger.Info("[dry-run] skipped clear")
		return nil
	}
	middleware.Logger.Info("clearing existing data")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec("TRUNCATE TABLE " + strings.Join(seededTables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range seededTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
