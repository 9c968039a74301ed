package clients

import (
	"context"
	"encoding/json"
	"fmt"
)

// Merchant is the canonical merchant shape. The catalog responds with
// either "name" or "restaurantName" depending on the endpoint, so the
// mapping is normalized here and nowhere else.
type Merchant struct {
	ID   string
	Name string
}

type CatalogClient struct{ c *Client }

func NewCatalogClient(c *Client) *CatalogClient { return &CatalogClient{c: c} }

func (cc *CatalogClient) Merchant(ctx context.Context, merchantID string) (Merchant, error) {
	var raw merchantResponse
	if err := cc.c.GetJSON(ctx, "/api/restaurants/"+merchantID, &raw); err != nil {
		return Merchant{}, err
	}
	m := raw.normalize()
	if m.ID == "" {
		m.ID = merchantID
	}
	return m, nil
}

type merchantResponse struct {
	ID             json.Number `json:"id"`
	Name           string      `json:"name"`
	RestaurantName string      `json:"restaurantName"`
}

func (r merchantResponse) normalize() Merchant {
	name := r.Name
	if name == "" {
		name = r.RestaurantName
	}
	return Merchant{ID: r.ID.String(), Name: name}
}

// UsersClient reads the caller's loyalty point balance.
type UsersClient struct{ c *Client }

func NewUsersClient(c *Client) *UsersClient { return &UsersClient{c: c} }

func (uc *UsersClient) LoyaltyBalance(ctx context.Context, userID string) (int64, error) {
	var out struct {
		LoyaltyPoints int64 `json:"loyaltyPoints"`
	}
	if err := uc.c.GetJSON(ctx, "/users/"+userID, &out); err != nil {
		return 0, err
	}
	return out.LoyaltyPoints, nil
}

// NGO is the canonical shape for a donation target.
type NGO struct {
	ID       string
	Name     string
	Approved bool
}

type NGOClient struct{ c *Client }

func NewNGOClient(c *Client) *NGOClient { return &NGOClient{c: c} }

// ApprovedNGO resolves an NGO id and verifies it is approved to receive
// donations.
func (nc *NGOClient) ApprovedNGO(ctx context.Context, ngoID string) (NGO, error) {
	var raw struct {
		ID       json.Number `json:"id"`
		Name     string      `json:"name"`
		NGOName  string      `json:"ngoName"`
		Status   string      `json:"status"`
		Approved bool        `json:"approved"`
	}
	if err := nc.c.GetJSON(ctx, "/api/ngos/"+ngoID, &raw); err != nil {
		return NGO{}, err
	}

	name := raw.Name
	if name == "" {
		name = raw.NGOName
	}
	approved := raw.Approved || raw.Status == "approved"

	ngo := NGO{ID: raw.ID.String(), Name: name, Approved: approved}
	if ngo.ID == "" {
		ngo.ID = ngoID
	}
	if !ngo.Approved {
		return NGO{}, fmt.Errorf("ngo %s is not approved for donations", ngoID)
	}
	return ngo, nil
}
