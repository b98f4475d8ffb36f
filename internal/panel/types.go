package panel

import "time"

type listResponse[T any] struct {
	Data []struct {
		Attributes T `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Pagination struct {
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

type allocationAttributes struct {
	IP        string  `json:"ip"`
	IPAlias   *string `json:"ip_alias"`
	Port      int     `json:"port"`
	IsDefault bool    `json:"is_default"`
}

type serverAttributes struct {
	Identifier    string  `json:"identifier"`
	UUID          string  `json:"uuid"`
	Name          string  `json:"name"`
	Node          string  `json:"node"`
	Status        *string `json:"status"`
	Relationships struct {
		Allocations listResponse[allocationAttributes] `json:"allocations"`
	} `json:"relationships"`
}

type resourcesResponse struct {
	Attributes struct {
		CurrentState string `json:"current_state"`
		IsSuspended  bool   `json:"is_suspended"`
	} `json:"attributes"`
}

type websocketResponse struct {
	Data struct {
		Token  string `json:"token"`
		Socket string `json:"socket"`
	} `json:"data"`
}

type backupAttributes struct {
	UUID         string     `json:"uuid"`
	Name         string     `json:"name"`
	Bytes        int64      `json:"bytes"`
	IsSuccessful bool       `json:"is_successful"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type fileAttributes struct {
	Name       string    `json:"name"`
	Mode       string    `json:"mode"`
	Size       int64     `json:"size"`
	IsFile     bool      `json:"is_file"`
	ModifiedAt time.Time `json:"modified_at"`
}
