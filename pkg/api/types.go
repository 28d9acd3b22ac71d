package api

type PTYStatus string

const (
	PTYStatusRunning PTYStatus = "running"
	PTYStatusExited  PTYStatus = "exited"
)

// PTY describes a pseudo-terminal hosted by the server.
type PTY struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Command string    `json:"command,omitempty"`
	Args    []string  `json:"args,omitempty"`
	Cwd     string    `json:"cwd,omitempty"`
	Status  PTYStatus `json:"status,omitempty"`
	PID     int       `json:"pid,omitempty"`
}

type CreatePTYRequest struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Title   string            `json:"title,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type PTYSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type UpdatePTYRequest struct {
	Title string   `json:"title,omitempty"`
	Size  *PTYSize `json:"size,omitempty"`
}

type Health struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
