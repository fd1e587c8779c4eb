package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the comparison API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	nullableSeries := map[string]interface{}{
		"type":     "array",
		"minItems": 24,
		"maxItems": 24,
		"items":    map[string]interface{}{"type": "number", "nullable": true},
	}

	errorSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"error": map[string]string{"type": "string"},
			"code":  map[string]string{"type": "integer"},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Weather Compare API",
			"description": "Actual vs forecast hourly temperature comparison per city",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/cities": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List configured cities",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Ordered city names",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type":  "array",
										"items": map[string]string{"type": "string"},
									},
								},
							},
						},
					},
				},
			},
			"/api/weather/{city}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Actual vs forecast comparison",
					"description": "Hourly actual and forecast temperature series for today and yesterday. Hours without data are null.",
					"parameters": []map[string]interface{}{
						{
							"name":     "city",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Comparison result",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"city":              map[string]string{"type": "string"},
											"today":             map[string]string{"type": "string", "format": "date"},
											"yesterday":         map[string]string{"type": "string", "format": "date"},
											"todayActual":       nullableSeries,
											"yesterdayActual":   nullableSeries,
											"todayForecast":     nullableSeries,
											"yesterdayForecast": nullableSeries,
										},
									},
								},
							},
						},
						"404": map[string]interface{}{
							"description": "Unknown city",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{"schema": errorSchema},
							},
						},
						"500": map[string]interface{}{
							"description": "Storage failure",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{"schema": errorSchema},
							},
						},
					},
				},
			},
			"/api/fetch": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Trigger ingestion",
					"description": "Synchronously ingest all configured cities, then run retention cleanup.",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Run completed (possibly with per-city failures)",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"success": map[string]string{"type": "boolean"},
											"message": map[string]string{"type": "string"},
										},
									},
								},
							},
						},
						"409": map[string]interface{}{
							"description": "Another ingestion run is already in flight",
						},
						"500": map[string]interface{}{
							"description": "Run failed",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{"schema": errorSchema},
							},
						},
					},
				},
			},
			"/api/status": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Store status",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Ingestion and store counters",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"last_ingested_at":      map[string]interface{}{"type": "string", "format": "date-time", "nullable": true},
											"city_count":            map[string]string{"type": "integer"},
											"distinct_target_dates": map[string]string{"type": "integer"},
											"total_samples":         map[string]string{"type": "integer"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/debug/{city}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Raw per-(fetch_date, target_date) aggregates",
					"parameters": []map[string]interface{}{
						{
							"name":     "city",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Aggregate rows",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"fetch_date":        map[string]string{"type": "string", "format": "date-time"},
												"target_date":       map[string]string{"type": "string", "format": "date-time"},
												"sample_count":      map[string]string{"type": "integer"},
												"min_temperature_c": map[string]string{"type": "number"},
												"max_temperature_c": map[string]string{"type": "number"},
											},
										},
									},
								},
							},
						},
						"404": map[string]interface{}{
							"description": "Unknown city",
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
