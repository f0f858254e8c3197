package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/plan"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and their subscription tier",
}

var userCreateCmd = &cobra.Command{
	Use:   "create EMAIL",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		tier, err := plan.ParseTier(cmd.Flag("tier").Value.String())
		if err != nil {
			r.logger.Fatal("parsing the tier", zap.Error(err))
		}

		user := &models.User{Email: strings.TrimSpace(args[0]), Tier: tier}
		if err := r.repo.CreateUser(r.ctx, user); err != nil {
			r.fail("creating the user", err)
		}
		printJSON(user)
	},
}

var userPlanCmd = &cobra.Command{
	Use:   "plan TIER",
	Short: "Change the subscription tier of --user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		tier, err := plan.ParseTier(args[0])
		if err != nil {
			r.logger.Fatal("parsing the tier", zap.Error(err))
		}

		user, err := r.repo.SetUserTier(r.ctx, r.user().ID, tier)
		if err != nil {
			r.fail("changing the tier", err)
		}
		r.logger.Info("tier changed", zap.String("user_id", user.ID), zap.String("tier", string(user.Tier)))
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userPlanCmd)

	userCreateCmd.Flags().String("tier", string(plan.Free), "subscription tier: free, pro or agency")
}
