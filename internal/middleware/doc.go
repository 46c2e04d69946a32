// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 目前包含主持人憑證的擷取；憑證是否有效由服務層依房間驗證。
package middleware
