package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// API error codes. Business failures are reported inside the envelope with
// HTTP 200; only the auth middleware answers with a non-200 status.
const (
	codeOK              = 0
	codeBadRequest      = 400
	codeNotLoggedIn     = 403
	codeNotFound        = 404
	codeUnknownSQL      = 500
	codeUnknownMethod   = 600
	codeEmptyPartyList  = 601
	codeLoanOverLimit   = 602
	codeLoanDisbursing  = 603
	codeLastHolder      = 604
	codeDuplicateEntry  = 1062
	codeRowReferenced   = 1451
	codeNoReferencedRow = 1452
)

// respondOK writes the success envelope. A nil data omits the data field.
func respondOK(c *gin.Context, data any) {
	body := gin.H{"success": true, "code": codeOK, "msg": ""}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

// respondErr writes the failure envelope with a business error code.
func respondErr(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "code": code, "msg": msg})
}
