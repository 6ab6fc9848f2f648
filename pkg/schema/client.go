package schema

import "time"

// Client is a customer or contact owned by the CRM store.
// ID, CreatedBy and CreatedAt are set once at creation and never change.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	Tags      []string  `json:"tags"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientFields holds the caller-supplied part of a new client.
type ClientFields struct {
	Name    string   `json:"name"`
	Company string   `json:"company"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone"`
	Address string   `json:"address"`
	Notes   string   `json:"notes"`
	Tags    []string `json:"tags"`
}

// ClientPatch is a partial update. Nil fields are left untouched.
type ClientPatch struct {
	Name    *string   `json:"name,omitempty"`
	Company *string   `json:"company,omitempty"`
	Email   *string   `json:"email,omitempty"`
	Phone   *string   `json:"phone,omitempty"`
	Address *string   `json:"address,omitempty"`
	Notes   *string   `json:"notes,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// Apply merges the set fields of p into c.
func (p ClientPatch) Apply(c *Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Company != nil {
		c.Company = *p.Company
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if p.Tags != nil {
		c.Tags = append([]string{}, (*p.Tags)...)
	}
}

// HasTag reports whether the client carries tag.
func (c Client) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy of c that shares no slices with it.
func (c Client) Clone() Client {
	if c.Tags != nil {
		c.Tags = append([]string{}, c.Tags...)
	}
	return c
}
