package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/suderio/ultramafia/internal/solicit"
	"github.com/suderio/ultramafia/internal/telegram"
)

var botToken string

// botCmd represents the bot command
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run a chat bot transport",
}

// telegramBotCmd represents the telegram subcommand of bot
var telegramBotCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run the Telegram bot",
	Long: `Long-polls the Telegram Bot API and hosts games in every group the bot is
added to. Players use /game, /join, /leave, /start and /stop in the group and
answer night prompts in their private chat with the bot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		token := cfg.Telegram.Token
		if botToken != "" {
			token = botToken
		}
		if token == "" {
			token = askToken()
			if token == "" {
				return errors.New("a Telegram bot token is required")
			}
			saveToken(token)
		}

		timings := cfg.Timings.ForGame(cfg.Game)
		bot := telegram.NewBot(telegram.NewClient(token, cfg.Telegram.APIBase, cfg.Telegram.Rate), telegram.Options{
			PollTimeout:  25,
			Refresh:      timings.RegistrationRefresh,
			LastUpdateID: cfg.Telegram.LastUpdateID,
		})
		broker := solicit.NewBroker(bot, timings)
		m, closeStore, err := openManager(cfg, broker, bot)
		if err != nil {
			return err
		}
		defer closeStore()
		bot.Bind(m, broker)

		ctx, stop := signalContext()
		defer stop()
		go func() { _ = m.Run(ctx) }()
		go bot.Watch(ctx, m.Events())

		err = bot.Run(ctx)
		shutdown(m)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func askToken() string {
	fmt.Println("---")
	fmt.Println("Create your Telegram Bot & Get Token")
	fmt.Println("Open Telegram and search for the official @BotFather.")
	fmt.Println("Send the /newbot command and follow the prompts to name your bot and choose a unique username.")
	fmt.Println("Add the bot to a group as an administrator so it can pin messages, and disable its privacy mode in BotFather's settings.")
	fmt.Println("---")
	fmt.Print("token: ")

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}

func saveToken(token string) {
	viper.Set("telegram.token", token)
	err := viper.WriteConfig()
	if err != nil {
		err = viper.SafeWriteConfig()
		if err != nil {
			home, _ := os.UserHomeDir()
			err = viper.WriteConfigAs(home + "/.ultramafia.yaml")
		}
	}
	if err == nil {
		fmt.Println("Telegram bot token saved successfully.")
	} else {
		fmt.Printf("Error saving configuration: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(botCmd)
	botCmd.AddCommand(telegramBotCmd)

	telegramBotCmd.Flags().StringVarP(&botToken, "token", "t", "", "Telegram bot API token")
}
