// Package api 處理 HTTP 請求路由和處理。
//
// 這個包包含了所有的 HTTP 處理器（handlers），包括房間登記、中繼協商、
// 伺服器主持的辯論與模板目錄。它負責將 HTTP 請求轉換為適當的服務調用，
// 並將結果轉換回 HTTP 響應。
package api
