package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountsController handles registration and login for readers and authors.
// All endpoints take form-encoded fields.
type AccountsController struct {
	accounts AccountService
	audit    EventLogger
	logger   *zap.Logger
}

func NewAccountsController(accounts AccountService, audit EventLogger, logger *zap.Logger) *AccountsController {
	if audit == nil {
		audit = nopEventLogger{}
	}
	return &AccountsController{
		accounts: accounts,
		audit:    audit,
		logger:   orNop(logger),
	}
}

func (controller *AccountsController) RegisterUser(c *gin.Context) {
	form, ok := requireForm(c, "email", "password", "username")
	if !ok {
		return
	}

	user, err := controller.accounts.RegisterUser(c.Request.Context(), form["username"], form["email"], form["password"])
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	controller.audit.LogAuth(user.ID, "register_user", true)
	c.IndentedJSON(http.StatusOK, gin.H{"username": user.Username, "message": "Registration was successful"})
}

func (controller *AccountsController) RegisterAuthor(c *gin.Context) {
	form, ok := requireForm(c, "email", "password", "username")
	if !ok {
		return
	}

	author, err := controller.accounts.RegisterAuthor(c.Request.Context(), form["username"], form["email"], form["password"])
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	controller.audit.LogAuth(author.ID, "register_author", true)
	c.IndentedJSON(http.StatusOK, gin.H{"username": author.Username, "message": "Registration was successful"})
}

func (controller *AccountsController) LoginUser(c *gin.Context) {
	form, ok := requireForm(c, "email", "password")
	if !ok {
		return
	}

	token, err := controller.accounts.LoginUser(c.Request.Context(), form["email"], form["password"])
	controller.audit.LogAuth(0, "login_user", err == nil)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"message": "Login details verified. Here is your authentication token",
		"token":   token,
	})
}

func (controller *AccountsController) LoginAuthor(c *gin.Context) {
	form, ok := requireForm(c, "email", "password")
	if !ok {
		return
	}

	token, err := controller.accounts.LoginAuthor(c.Request.Context(), form["email"], form["password"])
	controller.audit.LogAuth(0, "login_author", err == nil)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"message": "Login details verified, here is your authentication token",
		"token":   token,
	})
}
