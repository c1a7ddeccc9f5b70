package rest

import (
	"context"
	"net/http"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
)

func (c *client) CheckAuth(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("auth", "check"), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := unmarshalResponseDiscardingPayload(resp, defaultMessages("checking token", resp)); err != nil {
		if StatusCodeRangeOf(resp) == Status4xx {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type categoriesResponse struct {
	Categories config.Categories `json:"categories"`
}

func (c *client) GetCategories(ctx context.Context) (config.Categories, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("categories"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := categoriesResponse{}
	if err := unmarshalJsonResponse(resp, &res, defaultMessages("getting categories", resp)); err != nil {
		return nil, err
	}
	return res.Categories, nil
}

type Quotas struct {
	// number of cloud-run requests left.
	Requests project.Scalar `json:"requests"`
}

func (c *client) GetQuotas(ctx context.Context) (Quotas, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("quotas/"), nil)
	if err != nil {
		return Quotas{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return Quotas{}, err
	}
	defer resp.Body.Close()

	res := Quotas{}
	if err := unmarshalJsonResponse(
		resp, &res,
		MessageFor{
			Status4xx: "user is not registered or user token is broken. Try `pyx auth TOKEN` first",
			Status5xx: "pyx.ai server error while getting quotas",
		},
	); err != nil {
		return Quotas{}, err
	}
	return res, nil
}

// Order is a model the user has a license of.
type Order struct {
	ID      project.Scalar `json:"id"`
	License string         `json:"license"`
	Name    string         `json:"name"`
}

// RemoteModel is a model listing the user owns.
type RemoteModel struct {
	ID        project.Scalar `json:"id"`
	License   string         `json:"license"`
	Name      string         `json:"name"`
	Approved  bool           `json:"approved"`
	Published bool           `json:"published"`
}

type User struct {
	Orders []Order       `json:"orders"`
	Models []RemoteModel `json:"models"`
}

func (c *client) GetUser(ctx context.Context) (User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("users/"), nil)
	if err != nil {
		return User{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	res := User{}
	if err := unmarshalJsonResponse(
		resp, &res,
		MessageFor{
			Status4xx: "user is not registered or user token is broken. Try `pyx auth TOKEN` first",
			Status5xx: "pyx.ai server error while getting user",
		},
	); err != nil {
		return User{}, err
	}
	return res, nil
}
