// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tasklist/tasklist/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(migrator.Close()).To(Succeed()) })
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("applies every embedded migration", func() {
		Expect(migrator.Up()).To(Succeed())

		all, err := store.Migrations()
		Expect(err).NotTo(HaveOccurred())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(Equal(all[len(all)-1].Version))
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Applied).To(HaveLen(len(all)))
	})

	It("treats a second Up as a no-op", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("steps down and back up", func() {
		before, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())

		Expect(migrator.Steps(-1)).To(Succeed())
		after, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(Equal(before - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		restored, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(restored).To(Equal(before))
	})

	It("enforces case-insensitive email uniqueness", func(ctx SpecContext) {
		pool, err := store.Connect(ctx, connStr, 10*time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(ctx, `INSERT INTO users (email, password_hash) VALUES ('Case@x.com', 'h')`)
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, `INSERT INTO users (email, password_hash) VALUES ('case@x.com', 'h')`)
		Expect(err).To(HaveOccurred())

		_, err = pool.Exec(context.Background(), `DELETE FROM users`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rolls everything back with Down", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})
