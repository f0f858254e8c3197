package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/bewerbungs-agent/internal/models"
)

// profileFile is the YAML layout accepted by profile set.
type profileFile struct {
	FullName        string          `yaml:"full_name"`
	Email           string          `yaml:"email"`
	Phone           string          `yaml:"phone"`
	Location        string          `yaml:"location"`
	ExperienceYears int             `yaml:"experience_years"`
	Skills          []string        `yaml:"skills"`
	CVText          string          `yaml:"cv_text"`
	CVFile          string          `yaml:"cv_file"`
	Education       []models.Entry  `yaml:"education"`
	WorkHistory     []models.Entry  `yaml:"work_history"`
	Locales         []models.Locale `yaml:"locales"`
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the profile used for scoring and cover letters",
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or replace the profile of --user",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		user := r.user()

		var in profileFile
		if path := cmd.Flag("file").Value.String(); path != "" {
			if err := readYAML(path, &in); err != nil {
				r.logger.Fatal("reading the profile file", zap.Error(err))
			}
		}
		if skills, _ := cmd.Flags().GetStringSlice("skills"); len(skills) > 0 {
			in.Skills = skills
		}
		if path := cmd.Flag("cv-file").Value.String(); path != "" {
			in.CVFile = path
		}
		if name := cmd.Flag("name").Value.String(); name != "" {
			in.FullName = name
		}

		profile, err := in.toProfile(user)
		if err != nil {
			r.logger.Fatal("building the profile", zap.Error(err))
		}
		if err := r.repo.UpsertProfile(r.ctx, profile); err != nil {
			r.fail("saving the profile", err)
		}

		r.logger.Info("profile saved",
			zap.String("user_id", user.ID),
			zap.Int("skills", len(profile.Skills)),
			zap.Int("cv_length", len(profile.CVText)),
		)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the profile of --user",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		profile, err := r.repo.GetProfile(r.ctx, r.user().ID)
		if err != nil {
			r.fail("loading the profile", err)
		}
		printJSON(profile)
	},
}

func (in profileFile) toProfile(user *models.User) (*models.Profile, error) {
	cv := in.CVText
	if path := strings.TrimSpace(in.CVFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read cv file %q: %w", path, err)
		}
		cv = string(data)
	}

	p := &models.Profile{
		UserID:          user.ID,
		FullName:        strings.TrimSpace(in.FullName),
		Email:           strings.TrimSpace(in.Email),
		Phone:           strings.TrimSpace(in.Phone),
		Location:        strings.TrimSpace(in.Location),
		ExperienceYears: in.ExperienceYears,
		CVText:          strings.TrimSpace(cv),
		Education:       in.Education,
		WorkHistory:     in.WorkHistory,
		Locales:         in.Locales,
	}
	if p.Email == "" {
		p.Email = user.Email
	}
	p.SetSkills(in.Skills)
	return p, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %q: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileShowCmd)

	profileSetCmd.Flags().StringP("file", "f", "", "YAML file with the profile")
	profileSetCmd.Flags().StringSlice("skills", nil, "comma separated skills, replaces skills from the file")
	profileSetCmd.Flags().String("cv-file", "", "plain text CV, replaces cv_text from the file")
	profileSetCmd.Flags().String("name", "", "full name")
}
