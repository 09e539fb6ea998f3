package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chatflow/internal/api"
	"chatflow/internal/config"
	"chatflow/internal/domain"
	"chatflow/internal/store"
	"chatflow/internal/stream"
	"chatflow/internal/turn"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	client := api.NewClient(cfg.APIBaseURL, cfg.APIToken, logger)
	if cfg.APIToken == "" {
		if token := loginFlow(ctx, reader, client); token != "" {
			client.SetToken(token)
		}
	}

	st := store.NewStore(logger)
	streams := stream.NewController(client, logger, cfg.StreamIdleTimeout)
	turns := turn.NewController(st, client, streams, cfg.TokenLimit, logger)
	turns.SetEvents(turn.Events{
		Delta: func(_, _, content string) {
			redrawAssistantLine(content)
		},
		IndicatorChanged: func(_, indicator string) {
			if indicator != "" {
				fmt.Printf("\n[%s...]\n", indicator)
			}
		},
	})

	var chatID string

	fmt.Println("---- Modo Chat ----")
	fmt.Println("Comandos: /regenerar, /editar <n> <texto>, /feedback <n> <up|down>, /cancelar, /salir")
	for {
		fmt.Print("Tu > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.EqualFold(line, "/salir"), strings.EqualFold(line, "/exit"):
			fmt.Println("Saliendo del chat...")
			return
		case strings.EqualFold(line, "/cancelar"):
			turns.CancelStream(chatID)
			continue
		case strings.EqualFold(line, "/regenerar"):
			session, err := turns.RegenerateTurn(ctx, chatID)
			if err != nil {
				fmt.Printf("error regenerando: %v\n", err)
				continue
			}
			waitAndPrint(st, session, chatID)
			continue
		case strings.HasPrefix(line, "/editar "):
			runEdit(ctx, turns, st, chatID, strings.TrimPrefix(line, "/editar "))
			continue
		case strings.HasPrefix(line, "/feedback "):
			runFeedback(ctx, turns, st, chatID, strings.TrimPrefix(line, "/feedback "))
			continue
		}

		newChatID, session, err := turns.SendTurn(ctx, chatID, line)
		if err != nil {
			fmt.Printf("error enviando: %v\n", err)
			continue
		}
		chatID = newChatID
		waitAndPrint(st, session, chatID)
	}
}

func loginFlow(ctx context.Context, reader *bufio.Reader, client *api.Client) string {
	fmt.Print("Email (enter para omitir login): ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	token, err := client.Login(ctx, email, password)
	if err != nil {
		fmt.Printf("login fallido: %v\n", err)
		return ""
	}
	return token
}

// waitAndPrint espera el final de la sesión e imprime el estado final
// del último mensaje del asistente según el store.
func waitAndPrint(st *store.Store, session *stream.Session, chatID string) {
	if session != nil {
		session.Wait()
	}
	chat, ok := st.Chat(chatID)
	if !ok || len(chat.Messages) == 0 {
		return
	}
	last := chat.Messages[len(chat.Messages)-1]
	if last.Role == domain.RoleAssistant {
		fmt.Printf("\nAsistente > %s\n", last.Content)
	}
}

func runEdit(ctx context.Context, turns *turn.Controller, st *store.Store, chatID, args string) {
	idx, rest, ok := splitIndexArg(args)
	if !ok || strings.TrimSpace(rest) == "" {
		fmt.Println("uso: /editar <n> <texto nuevo>")
		return
	}
	msg, ok := messageAt(st, chatID, idx)
	if !ok {
		fmt.Println("mensaje inexistente")
		return
	}
	session, err := turns.EditTurn(ctx, chatID, msg.LocalID, rest)
	if err != nil {
		fmt.Printf("error editando: %v\n", err)
		return
	}
	waitAndPrint(st, session, chatID)
}

func runFeedback(ctx context.Context, turns *turn.Controller, st *store.Store, chatID, args string) {
	idx, rest, ok := splitIndexArg(args)
	value := domain.Feedback(strings.TrimSpace(rest))
	if !ok || (value != domain.FeedbackUp && value != domain.FeedbackDown) {
		fmt.Println("uso: /feedback <n> <up|down>")
		return
	}
	msg, ok := messageAt(st, chatID, idx)
	if !ok {
		fmt.Println("mensaje inexistente")
		return
	}
	if err := turns.SetFeedback(ctx, chatID, msg.LocalID, value); err != nil {
		fmt.Printf("error en feedback: %v\n", err)
		return
	}
	fmt.Println("feedback registrado")
}

func splitIndexArg(args string) (int, string, bool) {
	args = strings.TrimSpace(args)
	parts := strings.SplitN(args, " ", 2)
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 1 {
		return 0, "", false
	}
	rest := ""
	if len(parts) > 1 {
		rest = parts[1]
	}
	return idx, rest, true
}

func messageAt(st *store.Store, chatID string, idx int) (domain.Message, bool) {
	chat, ok := st.Chat(chatID)
	if !ok || idx > len(chat.Messages) {
		return domain.Message{}, false
	}
	return chat.Messages[idx-1], true
}

func redrawAssistantLine(content string) {
	// Impresión incremental simple: reescribe la línea con el contenido
	// acumulado, truncado al ancho típico de una terminal.
	const width = 100
	runes := []rune(content)
	if len(runes) > width {
		runes = runes[len(runes)-width:]
	}
	fmt.Printf("\r%s", strings.ReplaceAll(string(runes), "\n", " "))
}
