// Package httpclient provides the HTTP plumbing behind the http navigator.
//
// [NewClient] builds a client with a pooled transport and a private cookie
// jar. Responses are decoded with [DecodeBody], which handles brotli, gzip
// and deflate so the client can advertise the same Accept-Encoding a browser
// does. [ExtractAssets] finds the sub-resources of a page.
//
//	client := httpclient.NewClient(30 * time.Second)
//	resp, err := client.Do(req)
//	body, err := httpclient.ReadBody(resp)
//	for _, asset := range httpclient.ExtractAssets(resp.Request.URL, body) {
//		// fetch asset
//	}
package httpclient
