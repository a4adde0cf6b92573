// Command main runs the database seeder for TaskHub.
package main

import (
	"flag"
	"log"
	"strings"

	"taskhub/internal/bootstrap"
	"taskhub/internal/config"
	"taskhub/internal/seed"
)

func main() {
	preset := flag.String("preset", "small", "Seeder preset to apply (small, demo)")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing to the database")
	shouldClean := flag.Bool("clean", false, "Clear existing data before seeding")
	fast := flag.Bool("fast", true, "Hash the shared password with bcrypt.MinCost")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	presets, err := seed.BuiltinPresets()
	if err != nil {
		log.Fatalf("Failed to load presets: %v", err)
	}
	if _, ok := presets[strings.ToLower(*preset)]; !ok {
		log.Fatalf("Unknown preset %q (available: %s)", *preset, strings.Join(seed.PresetNames(presets), ", "))
	}

	log.Println("🌱 TaskHub Seeder")
	log.Println("=================")
	log.Printf("preset=%s dry-run=%v clean=%v\n", *preset, *dryRun, *shouldClean)

	opts := seed.Options{DryRun: *dryRun, SkipBcrypt: *fast, RandSeed: *randSeed}

	var s *seed.Seeder
	if *dryRun {
		s = seed.NewSeeder(nil, opts)
	} else {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
		if err != nil {
			log.Fatalf("Failed to initialize runtime: %v", err)
		}
		defer rt.Close()
		s = seed.NewSeeder(rt.DB, opts)
	}

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	sum, err := s.ApplyPreset(*preset)
	if err != nil {
		log.Fatalf("❌ Preset seeding failed: %v", err)
	}

	log.Printf("✨ Seeded %d users, %d projects, %d tasks, %d resources, %d tags, %d links",
		sum.Users, sum.Projects, sum.Tasks, sum.Resources, sum.Tags, sum.Links)
	log.Printf("   %d follows, %d friendships, %d posts, %d comments, %d likes",
		sum.Follows, sum.Friendships, sum.Posts, sum.Comments, sum.Likes)
	if !*dryRun {
		log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
	}
}
