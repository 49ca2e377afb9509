package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	var out strings.Builder
	for k, vals := range headers {
		for _, v := range vals {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	fmt.Fprintf(&out, "---- REQUEST ----\n\n%s %s\n\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		out.WriteString(formatHeaders(res.Request.RawRequest.Header))
		out.WriteString("\n\n")
		out.WriteString(formatRequestBody(res.Request.RawRequest))
		out.WriteString("\n\n")
	}

	responseUrl := res.Request.URL
	redirected, err := res.RawResponse.Location()
	if err == nil {
		responseUrl = redirected.String()
	}

	fmt.Fprintf(&out, "---- RESPONSE ----\n\n%d %s\n\n", res.StatusCode(), responseUrl)
	out.WriteString(formatHeaders(res.Header()))
	out.WriteString("\n\n")
	out.WriteString(res.String())

	return out.String()
}
