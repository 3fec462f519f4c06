// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wellness implements the mental wellness check-in: a five-metric
// self assessment with a weighted score, a prompt that hands the assessment
// to Dr. Echo, and a meditation countdown.
//
// # Usage
//
//	a := wellness.Assessment{Mood: 7, Anxiety: 3, Sleep: 8, Energy: 6, Focus: 7}
//	fmt.Println(a.Score()) // 71
//	reply, err := wellness.Consult(ctx, store, a)
package wellness
