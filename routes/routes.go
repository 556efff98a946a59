package routes

import (
	"net/http"
	"time"

	"laptop_tracker/app"
	"laptop_tracker/controllers"
	"laptop_tracker/obs"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	laptops := controllers.NewLaptopController(a.Lifecycle, a.Repo)
	directory := controllers.NewDirectoryController(a.Lifecycle, a.Repo)
	history := controllers.NewHistoryController(a.Lifecycle, a.Repo)
	accounts := controllers.GetAccountController(s)
	inviteCtl := controllers.GetInviteController(s)

	authMW := app.AuthRequired(a.AppSessions(), a.Repo, a.Config)
	adminMW := app.AdminOnly()
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, 5*time.Minute)
	limit := app.NewRateLimiter(a.Config.RateLimitRPS, a.Config.RateLimitBurst).Middleware()

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(obs.Handler()))

	// public status board
	public := r.Group("/api", limit)
	{
		public.GET("/board", laptops.Board)
		public.GET("/laptops", laptops.ListLaptops)
		public.GET("/laptops/:id", laptops.GetLaptop)
	}

	// login
	wa := r.Group("/webauthn", limit)
	{
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)
		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}
	r.POST("/auth/login", limit, s.PasswordLogin)

	auth := r.Group("/auth", authMW, seenMW)
	{
		auth.GET("/whoami", s.WhoAmI)
		auth.POST("/logout", s.Logout)
		auth.PUT("/password", s.SetPassword)
	}

	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// everything that changes inventory or reads the ledger is admin only
	admin := r.Group("/api", authMW, seenMW, adminMW)
	{
		admin.POST("/laptops", laptops.CreateLaptop)
		admin.PATCH("/laptops/:id", laptops.EditLaptop)
		admin.DELETE("/laptops/:id", laptops.DeleteLaptop)
		admin.POST("/laptops/:id/checkout", laptops.CheckOut)
		admin.POST("/laptops/:id/checkin", laptops.CheckIn)
		admin.POST("/laptops/:id/maintenance", laptops.SetMaintenance)

		admin.GET("/assignments", history.ListAssignments)
		admin.GET("/assignments/:id", history.GetAssignment)
		admin.GET("/stats", history.Stats)
		admin.GET("/consistency", history.Consistency)
		admin.GET("/actions", history.ListActions)

		admin.GET("/persons", directory.ListPersons)
		admin.POST("/persons", directory.CreatePerson)
		admin.PUT("/persons/:id", directory.RenamePerson)
		admin.DELETE("/persons/:id", directory.DeletePerson)

		admin.GET("/biometrics", directory.ListBiometrics)
		admin.POST("/biometrics", directory.CreateBiometric)
		admin.PUT("/biometrics/:id", directory.UpdateBiometric)
		admin.DELETE("/biometrics/:id", directory.DeleteBiometric)

		admin.GET("/accounts", accounts.ListAccounts)
		admin.GET("/accounts/:id", accounts.GetAccount)
		admin.DELETE("/accounts/:id", accounts.DeleteAccount)
		admin.PUT("/accounts/:id/admin", accounts.SetAdmin)
	}

	invites := r.Group("/admin", authMW, seenMW, adminMW)
	{
		invites.POST("/invites", inviteCtl.CreateInvite)
		invites.GET("/invites", inviteCtl.ListInvites)
	}
}
