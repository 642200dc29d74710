package viewmodels

type LoginViewData struct {
	CSRFToken    string
	Email        string
	Next         string
	ErrorMessage string
	// Teacher selects the teacher sign-in variant posted to /teacher/login.
	Teacher bool
	// DemoMode shows the seeded demo accounts under the form.
	DemoMode bool
	Toast    *ToastViewData
}

type RegisterViewData struct {
	CSRFToken    string
	Name         string
	Email        string
	ErrorMessage string
	Toast        *ToastViewData
}

type LoadingViewData struct {
	Path           string
	RefreshSeconds int
}
