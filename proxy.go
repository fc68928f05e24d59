package kransite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Stateless forwarding routes. Each one translates a JSON body into a
// third-party API call and relays the outcome: no retries, no queueing,
// the vendor's status decides ours.

// --- Telegram (contact form) ---

type contactRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sentResponse struct {
	Sent bool `json:"sent"`
}

func (a *App) telegramURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", a.Config.TelegramAPIBase, a.Config.TelegramToken, method)
}

// handleTelegramHealth forwards getMe so the admin page can show
// whether the bot token still works.
func (a *App) handleTelegramHealth(c echo.Context) error {
	if a.Config.TelegramToken == "" {
		return fail(c, http.StatusServiceUnavailable, "messaging is not configured")
	}
	resp, err := a.httpClient.Get(a.telegramURL("getMe"))
	if err != nil {
		c.Logger().Errorf("telegram getMe: %v", err)
		return fail(c, http.StatusBadGateway, "failed to reach the messaging service")
	}
	defer resp.Body.Close()

	var tg telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tg); err != nil || !tg.OK {
		return fail(c, http.StatusBadGateway, "messaging service reported an error")
	}
	return c.JSON(http.StatusOK, tg)
}

// handleTelegramSend forwards a contact-form submission into the
// configured chat as one sendMessage call.
func (a *App) handleTelegramSend(c echo.Context) error {
	if a.Config.TelegramToken == "" || a.Config.TelegramChatID == "" {
		return fail(c, http.StatusServiceUnavailable, "messaging is not configured")
	}
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return fail(c, http.StatusBadRequest, "name and phone are required")
	}

	text := fmt.Sprintf("Заявка с сайта\nИмя: %s\nТелефон: %s", req.Name, req.Phone)
	if msg := strings.TrimSpace(req.Message); msg != "" {
		text += "\nСообщение: " + msg
	}

	payload, _ := json.Marshal(map[string]string{
		"chat_id": a.Config.TelegramChatID,
		"text":    text,
	})
	resp, err := a.httpClient.Post(a.telegramURL("sendMessage"), "application/json", bytes.NewReader(payload))
	if err != nil {
		c.Logger().Errorf("telegram sendMessage: %v", err)
		return fail(c, http.StatusBadGateway, "failed to reach the messaging service")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var tg telegramResponse
	_ = json.Unmarshal(body, &tg)
	if resp.StatusCode/100 != 2 || !tg.OK {
		c.Logger().Errorf("telegram sendMessage: status=%d description=%q", resp.StatusCode, tg.Description)
		// Telegram reports "chat not found" until someone has opened
		// the bot conversation; translate that into something the
		// operator can act on.
		if strings.Contains(strings.ToLower(tg.Description), "chat not found") {
			return fail(c, http.StatusBadGateway,
				"the bot cannot post into the configured chat: open the bot conversation, press Start, and retry")
		}
		msg := tg.Description
		if msg == "" {
			msg = "messaging service reported an error"
		}
		return fail(c, http.StatusBadGateway, msg)
	}
	return c.JSON(http.StatusOK, sentResponse{Sent: true})
}

// --- Assistant (prompt-completion vendor) ---

type assistantRequest struct {
	Prompt string `json:"prompt"`
}

type assistantResponse struct {
	Reply string `json:"reply"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// handleAssistant forwards a visitor prompt to the completion vendor
// and relays the first choice. The browser cannot call the vendor
// directly because of cross-origin restrictions; this route exists so
// it does not have to.
func (a *App) handleAssistant(c echo.Context) error {
	if a.Config.AssistantAPIKey == "" {
		return fail(c, http.StatusServiceUnavailable, "assistant is not configured")
	}
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return fail(c, http.StatusBadRequest, "prompt is required")
	}

	payload, _ := json.Marshal(chatCompletionRequest{
		Model: a.Config.AssistantModel,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
	})
	httpReq, err := http.NewRequestWithContext(c.Request().Context(), http.MethodPost,
		a.Config.AssistantBaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.Config.AssistantAPIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		c.Logger().Errorf("assistant: %v", err)
		return fail(c, http.StatusBadGateway, "failed to reach the assistant service")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var completion chatCompletionResponse
	_ = json.Unmarshal(body, &completion)

	if resp.StatusCode/100 != 2 {
		c.Logger().Errorf("assistant: status=%d body=%s", resp.StatusCode, body)
		msg := "assistant service reported an error"
		if completion.Error != nil && completion.Error.Message != "" {
			msg = completion.Error.Message
		}
		return fail(c, http.StatusBadGateway, msg)
	}
	if len(completion.Choices) == 0 {
		return fail(c, http.StatusBadGateway, "assistant returned no answer")
	}
	return c.JSON(http.StatusOK, assistantResponse{Reply: completion.Choices[0].Message.Content})
}
